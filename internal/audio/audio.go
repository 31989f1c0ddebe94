// Package audio defines the boundary between the modem stack and a
// concrete sound device. Device bindings (ALSA, PortAudio, WASAPI, ...)
// live outside the core; this package only names the contract.
package audio

import "context"

// Sample is one signed 16-bit PCM sample, the format every demodulator
// and modulator in this module operates on.
type Sample = int16

// Device is a full-duplex mono or stereo PCM stream. ReadSamples blocks
// until at least one sample is available or ctx is done; WriteSamples
// blocks until the samples have been queued to the device.
type Device interface {
	SampleRate() int
	Channels() int

	ReadSamples(ctx context.Context, buf []Sample) (n int, err error)
	WriteSamples(ctx context.Context, buf []Sample) error

	Close() error
}
