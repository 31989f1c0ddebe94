// Package il2p implements the IL2P framing wrapper: a 24-bit sync word,
// a Hamming(7,4)-protected header, one or more Reed-Solomon-coded payload
// blocks, and an optional trailing Hamming-protected CRC-16 used as a
// post-FEC sanity check.
//
// Reference: http://tarpn.net/t/il2p/il2p-specification0-4.pdf
package il2p

import "github.com/kb9vck/pktmodem/internal/ax25"

// hammingEncode maps a 4-bit data nibble to its 7-bit Hamming(7,4)
// codeword.
var hammingEncode = [16]byte{
	0x00, 0x71, 0x62, 0x13, 0x54, 0x25, 0x36, 0x47,
	0x38, 0x49, 0x5a, 0x2b, 0x6c, 0x1d, 0x0e, 0x7f,
}

// hammingDecode maps a received 7-bit codeword (bit 7 ignored) to its
// corrected 4-bit data nibble, correcting any single-bit error.
var hammingDecode = [128]byte{
	0x00, 0x00, 0x00, 0x03, 0x00, 0x05, 0x0e, 0x07,
	0x00, 0x09, 0x0e, 0x0b, 0x0e, 0x0d, 0x0e, 0x0e,
	0x00, 0x03, 0x03, 0x03, 0x04, 0x0d, 0x06, 0x03,
	0x08, 0x0d, 0x0a, 0x03, 0x0d, 0x0d, 0x0e, 0x0d,
	0x00, 0x05, 0x02, 0x0b, 0x05, 0x05, 0x06, 0x05,
	0x08, 0x0b, 0x0b, 0x0b, 0x0c, 0x05, 0x0e, 0x0b,
	0x08, 0x01, 0x06, 0x03, 0x06, 0x05, 0x06, 0x06,
	0x08, 0x08, 0x08, 0x0b, 0x08, 0x0d, 0x06, 0x0f,
	0x00, 0x09, 0x02, 0x07, 0x04, 0x07, 0x07, 0x07,
	0x09, 0x09, 0x0a, 0x09, 0x0c, 0x09, 0x0e, 0x07,
	0x04, 0x01, 0x0a, 0x03, 0x04, 0x04, 0x04, 0x07,
	0x0a, 0x09, 0x0a, 0x0a, 0x04, 0x0d, 0x0a, 0x0f,
	0x02, 0x01, 0x02, 0x02, 0x0c, 0x05, 0x02, 0x07,
	0x0c, 0x09, 0x02, 0x0b, 0x0c, 0x0c, 0x0c, 0x0f,
	0x01, 0x01, 0x02, 0x01, 0x04, 0x01, 0x06, 0x0f,
	0x08, 0x01, 0x0a, 0x0f, 0x0c, 0x0f, 0x0f, 0x0f,
}

// hammingEncodeNibbles Hamming(7,4)-encodes each nibble of data, high
// nibble first, producing one output byte per nibble.
func hammingEncodeNibbles(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		out = append(out, hammingEncode[b>>4], hammingEncode[b&0x0f])
	}
	return out
}

// hammingDecodeNibbles reverses hammingEncodeNibbles, recombining nibble
// pairs into bytes. len(encoded) must be even.
func hammingDecodeNibbles(encoded []byte) []byte {
	out := make([]byte, len(encoded)/2)
	for i := range out {
		hi := hammingDecode[encoded[2*i]&0x7f]
		lo := hammingDecode[encoded[2*i+1]&0x7f]
		out[i] = hi<<4 | lo
	}
	return out
}

// EncodeCRC Hamming-protects a 16-bit CRC into 4 bytes, high nibble
// first.
func EncodeCRC(crc uint16) [4]byte {
	var out [4]byte
	out[0] = hammingEncode[(crc>>12)&0x0f]
	out[1] = hammingEncode[(crc>>8)&0x0f]
	out[2] = hammingEncode[(crc>>4)&0x0f]
	out[3] = hammingEncode[crc&0x0f]
	return out
}

// DecodeCRC reverses EncodeCRC, correcting single-bit errors in each of
// the 4 encoded bytes.
func DecodeCRC(encoded [4]byte) uint16 {
	n0 := uint16(hammingDecode[encoded[0]&0x7f])
	n1 := uint16(hammingDecode[encoded[1]&0x7f])
	n2 := uint16(hammingDecode[encoded[2]&0x7f])
	n3 := uint16(hammingDecode[encoded[3]&0x7f])
	return n0<<12 | n1<<8 | n2<<4 | n3
}

// CRC computes the trailing check value over decoded AX.25 frame bytes
// (without the AX.25 FCS). IL2P uses the same CRC-16/X.25 as AX.25
// framing, so this delegates to ax25.FCS rather than carrying a second
// table.
func CRC(frameData []byte) uint16 { return ax25.FCS(frameData) }
