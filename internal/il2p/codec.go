package il2p

import (
	"fmt"

	"github.com/kb9vck/pktmodem/internal/rs"
)

// SyncWord is the 24-bit pattern that opens every IL2P transmission,
// sent MSB first.
const SyncWord = 0xf15e48

// payloadBlockDataMax and payloadBlockParity give the RS(255,239) shape
// of every IL2P payload block: 16 parity bytes protect up to 239 data
// bytes per block, the same family FX.25 tags 0x1-0x4 draw from. The
// header's FECLevel does not change this shape.
const payloadBlockDataMax = 239
const payloadBlockParity = 16

func payloadCodec() (*rs.Codec, error) {
	return rs.NewCodec(payloadBlockDataMax+payloadBlockParity, payloadBlockDataMax, 1, 1)
}

// EncodePayload splits payload into one or more RS-protected blocks
// (scrambled before coding), concatenating each block's data+parity
// bytes.
func EncodePayload(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadBytes {
		return nil, fmt.Errorf("il2p: payload of %d bytes exceeds max %d", len(payload), MaxPayloadBytes)
	}
	c, err := payloadCodec()
	if err != nil {
		return nil, err
	}
	var out []byte
	for off := 0; off < len(payload) || off == 0 && len(payload) == 0; off += payloadBlockDataMax {
		end := off + payloadBlockDataMax
		if end > len(payload) {
			end = len(payload)
		}
		block := make([]byte, payloadBlockDataMax)
		copy(block, payload[off:end])
		scrambled := ScrambleBlock(block)
		parity, err := c.Encode(scrambled)
		if err != nil {
			return nil, err
		}
		out = append(out, scrambled...)
		out = append(out, parity...)
		if len(payload) == 0 {
			break
		}
	}
	return out, nil
}

// DecodePayload reverses EncodePayload given the original (unscrambled)
// payload length.
func DecodePayload(blocks []byte, payloadLen int) ([]byte, int, bool) {
	c, err := payloadCodec()
	if err != nil {
		return nil, 0, false
	}
	blockWire := payloadBlockDataMax + payloadBlockParity
	var out []byte
	totalErrs := 0
	for off := 0; off < len(blocks); off += blockWire {
		end := off + blockWire
		if end > len(blocks) {
			return nil, 0, false
		}
		data, errCount, ok := c.Decode(blocks[off:end])
		if !ok {
			return nil, 0, false
		}
		out = append(out, DescrambleBlock(data)...)
		totalErrs += errCount
	}
	if payloadLen > len(out) {
		return nil, 0, false
	}
	return out[:payloadLen], totalErrs, true
}

// NumBlocks reports how many RS payload blocks a payload of payloadLen
// bytes will occupy.
func NumBlocks(payloadLen int) int {
	if payloadLen == 0 {
		return 1
	}
	return (payloadLen + payloadBlockDataMax - 1) / payloadBlockDataMax
}

// Encode wraps an AX.25-derived (header, payload) pair into a full IL2P
// transmission: sync word, Hamming-protected header, RS-coded payload
// blocks, and an optional trailing Hamming-protected CRC computed over
// the original decoded frame bytes.
func Encode(h Header, payload []byte, trailingCRCOver []byte) ([]byte, error) {
	h.PayloadLen = len(payload)
	hdr, err := EncodeHeader(h)
	if err != nil {
		return nil, err
	}
	body, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	out := []byte{byte(SyncWord >> 16), byte(SyncWord >> 8 & 0xff), byte(SyncWord & 0xff)}
	out = append(out, hdr[:]...)
	out = append(out, body...)
	if trailingCRCOver != nil {
		crcBytes := EncodeCRC(CRC(trailingCRCOver))
		out = append(out, crcBytes[:]...)
	}
	return out, nil
}
