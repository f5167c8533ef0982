package recorder

import "encoding/binary"

const (
	// HeaderSize is the length of the mu-law WAV preamble written by Start.
	HeaderSize = 58

	// DataLengthOffset is where the little-endian u32 payload length lives.
	DataLengthOffset = 54

	// SampleRate, Channels and FormatMuLaw describe the only layout the writer emits.
	SampleRate  = 8000
	Channels    = 1
	FormatMuLaw = 7
)

// headerTemplate is the WAV preamble Twilio media streams decode against:
// 8kHz mono mu-law with a fact chunk. The RIFF size (offset 4) and fact
// sample count (offset 46) are fixed placeholders and are never rewritten.
var headerTemplate = [HeaderSize]byte{
	'R', 'I', 'F', 'F', 0x62, 0xb8, 0x00, 0x00, // container tag, container size
	'W', 'A', 'V', 'E', // format tag
	'f', 'm', 't', ' ', 0x12, 0x00, 0x00, 0x00, // fmt id, size 18
	0x07, 0x00, // compression code (mu-law)
	0x01, 0x00, // channels
	0x40, 0x1f, 0x00, 0x00, // sample rate 8000
	0x80, 0x3e, 0x00, 0x00, // byte rate
	0x02, 0x00, // block align
	0x04, 0x00, // bits per sample
	0x00, 0x00, // extra params size
	'f', 'a', 'c', 't', 0x04, 0x00, 0x00, 0x00, // fact id, size 4
	0xc5, 0x5b, 0x00, 0x00, // sample count placeholder
	'd', 'a', 't', 'a', // data id
	0x00, 0x00, 0x00, 0x00, // data length, patched by Stop
}

// Header returns a copy of the preamble with the data length set to zero.
func Header() []byte {
	h := make([]byte, HeaderSize)
	copy(h, headerTemplate[:])
	return h
}

// encodeDataLength returns the 4 bytes stored at DataLengthOffset.
// Lengths above 2^32-1 wrap, matching the 32-bit field.
func encodeDataLength(n int64) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(n))
	return b
}
