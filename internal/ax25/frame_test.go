package ax25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseUIFrame(t *testing.T) {
	dest, err := ParseAddress("APRS")
	require.NoError(t, err)
	src, err := ParseAddress("KB9VCK-9")
	require.NoError(t, err)

	ctl := Control{Category: CategoryU, UType: CtlUI, PF: false}
	f, err := Build(dest, src, nil, ctl, false, 0xf0, true, []byte("hello world"))
	require.NoError(t, err)

	got, err := Parse(f.Bytes(), false)
	require.NoError(t, err)

	assert.Equal(t, "APRS", got.Destination().Callsign)
	assert.Equal(t, "KB9VCK", got.Source().Callsign)
	assert.Equal(t, 9, got.Source().SSID)
	assert.Equal(t, CategoryU, got.Control().Category)
	assert.Equal(t, byte(CtlUI), got.Control().UType)
	pid, hasPID := got.PID()
	assert.True(t, hasPID)
	assert.Equal(t, byte(0xf0), pid)
	assert.Equal(t, []byte("hello world"), got.Info())
}

func TestBuildWithDigipeaters(t *testing.T) {
	dest, _ := ParseAddress("N0CALL")
	src, _ := ParseAddress("KB9VCK")
	digi1, _ := ParseAddress("WIDE1-1")
	digi2, _ := ParseAddress("WIDE2-2")

	ctl := Control{Category: CategoryU, UType: CtlUI}
	f, err := Build(dest, src, []Address{digi1, digi2}, ctl, false, 0xf0, true, []byte("x"))
	require.NoError(t, err)

	got, err := Parse(f.Bytes(), false)
	require.NoError(t, err)
	require.Len(t, got.Digipeaters(), 2)
	assert.Equal(t, "WIDE1", got.Digipeaters()[0].Callsign)
	assert.Equal(t, "WIDE2", got.Digipeaters()[1].Callsign)
	assert.True(t, got.Addresses()[len(got.Addresses())-1].Last)
}

func TestBuildAndParseIFrame(t *testing.T) {
	dest, _ := ParseAddress("KB9VCK-1")
	src, _ := ParseAddress("KB9VCK-2")
	ctl := Control{Category: CategoryI, NS: 2, NR: 3, PF: false}
	f, err := Build(dest, src, nil, ctl, false, 0xf0, true, []byte("payload"))
	require.NoError(t, err)

	got, err := Parse(f.Bytes(), false)
	require.NoError(t, err)
	assert.Equal(t, CategoryI, got.Control().Category)
	assert.Equal(t, 2, got.Control().NS)
	assert.Equal(t, 3, got.Control().NR)
	assert.Equal(t, []byte("payload"), got.Info())
}

func TestBuildSupervisoryFrameHasNoInfo(t *testing.T) {
	dest, _ := ParseAddress("KB9VCK-1")
	src, _ := ParseAddress("KB9VCK-2")
	ctl := Control{Category: CategoryS, SType: STypeRR, NR: 4}
	f, err := Build(dest, src, nil, ctl, false, 0, false, nil)
	require.NoError(t, err)

	got, err := Parse(f.Bytes(), false)
	require.NoError(t, err)
	assert.Empty(t, got.Info())
	_, hasPID := got.PID()
	assert.False(t, hasPID)
}

func TestParseRejectsTooShort(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02}, false)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestParseRejectsMissingEndOfAddress(t *testing.T) {
	raw := make([]byte, 14)
	// Neither address octet sets the end-of-address bit.
	_, err := Parse(raw, false)
	assert.ErrorIs(t, err, ErrNoEndOfAddr)
}

func TestBuildRejectsTooManyDigipeaters(t *testing.T) {
	dest, _ := ParseAddress("N0CALL")
	src, _ := ParseAddress("KB9VCK")
	digis := make([]Address, 9)
	for i := range digis {
		digis[i] = Address{Callsign: "WIDE1", SSID: i}
	}
	ctl := Control{Category: CategoryU, UType: CtlUI}
	_, err := Build(dest, src, digis, ctl, false, 0, false, nil)
	assert.ErrorIs(t, err, ErrTooManyAddrs)
}
