package fx25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectTagPicksSmallestFit(t *testing.T) {
	idx, err := SelectTag(20, StrengthAuto)
	require.NoError(t, err)
	assert.Equal(t, 0x4, idx) // RS(48,32): smallest data field >= 20 bytes
}

func TestSelectTagRejectsOversize(t *testing.T) {
	_, err := SelectTag(300, StrengthAuto)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	idx, err := SelectTag(10, StrengthAuto)
	require.NoError(t, err)

	frame := []byte("hello fx25")
	block, err := Encode(idx, frame)
	require.NoError(t, err)

	// Strip the 8-byte tag to get the RS-protected block, as the receiver
	// would after matching the tag.
	rsBlock := block[8:]
	got, errCount, ok := Decode(idx, rsBlock)
	require.True(t, ok)
	assert.Equal(t, 0, errCount)
	assert.Equal(t, frame, got)
}

func TestDecodeCorrectsSymbolErrors(t *testing.T) {
	idx, err := SelectTag(10, StrengthAuto)
	require.NoError(t, err)

	frame := []byte("hello fx25")
	block, err := Encode(idx, frame)
	require.NoError(t, err)
	rsBlock := append([]byte(nil), block[8:]...)

	rsBlock[0] ^= 0xff // flip the first data byte

	got, errCount, ok := Decode(idx, rsBlock)
	require.True(t, ok)
	assert.Equal(t, 1, errCount)
	assert.Equal(t, frame, got)
}

func TestReceiverFindsTagAndBlock(t *testing.T) {
	idx, err := SelectTag(5, StrengthAuto)
	require.NoError(t, err)
	frame := []byte("hi!!!")
	full, err := Encode(idx, frame)
	require.NoError(t, err)

	var gotTag int
	var gotBlock []byte
	r := NewReceiver(func(tagIdx int, block []byte) {
		gotTag = tagIdx
		gotBlock = block
	})

	for _, b := range full {
		for i := 0; i < 8; i++ {
			bit := (b >> uint(i)) & 1
			r.PutBit(int(bit))
		}
	}

	require.NotNil(t, gotBlock)
	assert.Equal(t, idx, gotTag)
	decoded, _, ok := Decode(gotTag, gotBlock)
	require.True(t, ok)
	assert.Equal(t, frame, decoded)
}
