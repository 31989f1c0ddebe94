// Package config defines the configuration surface contract between an
// external loader (file parsing and the command-line surface are explicit
// Non-goals of the core) and the modem/link stack. The core only ever
// consumes an already-populated *Config; nothing in this package reads a
// file or a flag.
package config

// Modem identifies which demodulator/modulator family a sub-channel runs.
type Modem int

const (
	ModemAFSK Modem = iota
	ModemPSKV26
	ModemPSKV27
	ModemScrambledNRZI
)

// V26Alternative selects between the two incompatible V.26 phase mappings.
type V26Alternative int

const (
	V26Unspecified V26Alternative = iota
	V26A
	V26B
)

// SanityMode controls the frame fixer's post-flip plausibility filter.
type SanityMode int

const (
	SanityNone SanityMode = iota
	SanityAX25
	SanityAPRS
)

// FXStrength picks an FX.25 (n,k) family by desired correction strength.
type FXStrength int

const (
	FXOff FXStrength = iota
	FXAuto
	FXStrong
	FXMax
)

// IL2PStrength toggles between half-rate and max FEC block shapes.
type IL2PStrength int

const (
	IL2POff IL2PStrength = iota
	IL2PHalf
	IL2PMax
)

// FramingMode picks the one wrapper used on transmit for a channel: raw
// HDLC, FX.25-wrapped, or IL2P-wrapped. Exactly one applies per channel.
type FramingMode int

const (
	FramingHDLC FramingMode = iota
	FramingFX25
	FramingIL2P
)

// ChannelConfig holds the per-channel configuration surface: modem
// selection, PTT timing, and FEC wrapper choice.
type ChannelConfig struct {
	ModemType           Modem          `yaml:"modem_type"`
	MarkFreq            int            `yaml:"mark_freq"`
	SpaceFreq           int            `yaml:"space_freq"`
	Baud                int            `yaml:"baud"`
	NumSubchannels      int            `yaml:"num_subchannels"`
	NumSlicers          int            `yaml:"num_slicers"`
	SubchannelOffsetHz  int            `yaml:"subchannel_offset_hz"`
	Decimation          int            `yaml:"decimation"`
	Upsample            int            `yaml:"upsample"`
	ProfileLetters      string         `yaml:"profile_letters"`
	V26Alt              V26Alternative `yaml:"v26_alternative"`
	PTTMethod           string         `yaml:"ptt_method"`
	PTTDevice           string         `yaml:"ptt_device"`
	DCDSource           string         `yaml:"dcd_source"`
	TXInhibitInput      string         `yaml:"tx_inhibit_input"`
	DWait               int            `yaml:"dwait"`   // units of 10ms
	SlotTime            int            `yaml:"slottime"` // units of 10ms
	Persist             int            `yaml:"persist"`  // 0-255
	TXDelay             int            `yaml:"txdelay"`  // units of 10ms
	TXTail              int            `yaml:"txtail"`   // units of 10ms
	FullDuplex          bool           `yaml:"full_duplex"`
	Framing             FramingMode    `yaml:"framing"`
	FX25Strength        FXStrength     `yaml:"fx25_strength"`
	IL2PInvertPolarity  bool           `yaml:"il2p_invert_polarity"`
	IL2PStrength        IL2PStrength   `yaml:"il2p_strength"`
	FixBitsDepth        int            `yaml:"fix_bits_depth"`
	SanityMode          SanityMode     `yaml:"sanity_mode"`
}

// DeviceConfig holds the per-audio-device configuration surface.
type DeviceConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	BitsPerSample int `yaml:"bits_per_sample"`
	NumChannels   int `yaml:"num_channels"` // 1 = mono, 2 = stereo (two radio channels)
}

// Config is the global configuration surface: devices, per-channel
// settings, and the AX.25 link-layer tunables.
type Config struct {
	Devices  []DeviceConfig  `yaml:"devices"`
	Channels []ChannelConfig `yaml:"channels"`

	PACLEN    int `yaml:"paclen"`
	N2Retry   int `yaml:"n2_retry"`
	T1VMs     int `yaml:"t1v_default_ms"`
	MaxFrame  int `yaml:"maxframe"`  // k for modulo-8
	EMaxFrame int `yaml:"emaxframe"` // k for modulo-128
	MaxV22    int `yaml:"maxv22"`

	V20OnlyPeers []string `yaml:"v20_only_peers,omitempty"`
	NoXIDPeers   []string `yaml:"no_xid_peers,omitempty"`
}

// Default returns a Config populated with the conventional TNC defaults
// applied before any per-channel override: 1200 baud AFSK at
// 1200/2200 Hz, DWAIT 0, SLOTTIME 10 (100ms), PERSIST 63, TXDELAY 30
// (300ms), TXTAIL 10 (100ms), PACLEN 256, N2 10, MAXFRAME 4, EMAXFRAME 32.
func Default() *Config {
	return &Config{
		Devices: []DeviceConfig{{SampleRate: 44100, BitsPerSample: 16, NumChannels: 1}},
		Channels: []ChannelConfig{{
			ModemType:      ModemAFSK,
			MarkFreq:       1200,
			SpaceFreq:      2200,
			Baud:           1200,
			NumSubchannels: 1,
			NumSlicers:     1,
			Decimation:     1,
			Upsample:       1,
			DWait:          0,
			SlotTime:       10,
			Persist:        63,
			TXDelay:        30,
			TXTail:         10,
			Framing:        FramingHDLC,
			SanityMode:     SanityAPRS,
		}},
		PACLEN:    256,
		N2Retry:   10,
		T1VMs:     3000,
		MaxFrame:  4,
		EMaxFrame: 32,
		MaxV22:    3,
	}
}
