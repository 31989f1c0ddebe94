// Command audiodemo implements internal/audio.Device over a real
// sound card via gordonklaus/portaudio and runs the AFSK
// modulator/demodulator round trip against it. The core module never
// binds to a specific audio device; this command is the one place in
// the repo that does.
package main

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/kb9vck/pktmodem/internal/audio"
	"github.com/kb9vck/pktmodem/internal/demod"
	"github.com/kb9vck/pktmodem/internal/logging"
	"github.com/kb9vck/pktmodem/internal/modulate"
	"github.com/kb9vck/pktmodem/internal/tncerr"
)

// portaudioDevice adapts a portaudio full-duplex stream to
// audio.Device.
type portaudioDevice struct {
	stream     *portaudio.Stream
	in, out    []int16
	sampleRate int
	channels   int
}

func openPortaudioDevice(sampleRate, channels int) (*portaudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	in := make([]int16, 512*channels)
	out := make([]int16, 512*channels)
	stream, err := portaudio.OpenDefaultStream(channels, channels, float64(sampleRate), len(in)/channels, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		return nil, err
	}
	return &portaudioDevice{stream: stream, in: in, out: out, sampleRate: sampleRate, channels: channels}, nil
}

func (p *portaudioDevice) SampleRate() int { return p.sampleRate }
func (p *portaudioDevice) Channels() int   { return p.channels }

func (p *portaudioDevice) ReadSamples(ctx context.Context, buf []audio.Sample) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := p.stream.Read(); err != nil {
		return 0, tncerr.New(tncerr.DeviceLost, 0, "portaudio read failed", err)
	}
	n := copy(buf, p.in)
	return n, nil
}

func (p *portaudioDevice) WriteSamples(ctx context.Context, buf []audio.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for off := 0; off < len(buf); off += len(p.out) {
		end := off + len(p.out)
		if end > len(buf) {
			end = len(buf)
		}
		n := copy(p.out, buf[off:end])
		for i := n; i < len(p.out); i++ {
			p.out[i] = 0
		}
		if err := p.stream.Write(); err != nil {
			return tncerr.New(tncerr.DeviceLost, 0, "portaudio write failed", err)
		}
	}
	return nil
}

func (p *portaudioDevice) Close() error {
	err := p.stream.Close()
	portaudio.Terminate()
	return err
}

func main() {
	log := logging.For("audiodemo")

	dev, err := openPortaudioDevice(9600, 1)
	if err != nil {
		log.Fatal("opening audio device failed", "err", err)
	}
	defer dev.Close()

	cfg := modulate.AFSKConfig{SamplesPerSec: dev.SampleRate(), Baud: 1200, MarkFreq: 1200, SpaceFreq: 2200}
	mod := modulate.NewAFSKMod(cfg, 0.8)

	dcfg := demod.AFSKConfig{SamplesPerSec: dev.SampleRate(), Baud: 1200, MarkFreq: 1200, SpaceFreq: 2200}
	dem := demod.NewAFSKDemod(dcfg)

	var samples []float64
	bits := []int{1, 0, 1, 1, 0, 0, 1, 0}
	samples = mod.WriteBits(samples, bits)

	// Play the modulated tones out the sound card, then listen for one
	// read block and run whatever comes back (loopback cable, or just
	// room audio) through the demodulator.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pcm := make([]audio.Sample, len(samples))
	for i, s := range samples {
		pcm[i] = audio.Sample(s * 32000)
	}
	if err := dev.WriteSamples(ctx, pcm); err != nil {
		log.Fatal("playback failed", "err", err)
	}

	capture := make([]audio.Sample, len(pcm))
	n, err := dev.ReadSamples(ctx, capture)
	if err != nil {
		log.Fatal("capture failed", "err", err)
	}

	recovered := 0
	for _, s := range capture[:n] {
		if _, have := dem.ProcessSample(float64(s) / 32768); have {
			recovered++
		}
	}
	log.Info("round trip complete", "samples_played", len(pcm), "samples_captured", n, "bits_recovered", recovered)
}
