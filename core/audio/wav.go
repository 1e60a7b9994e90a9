package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

const (
	wavFormatPCM   = 1
	wavFormatALaw  = 6
	wavFormatMulaw = 7
)

var ErrInvalidWAV = errors.New("invalid wav container")

// EncodeWAV wraps raw PCM audio in a canonical 44 byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, encoding EncodingInfo) []byte {
	channels := encoding.channels()
	byteSize := max(encoding.Format.ByteSize(), 1)
	bitsPerSample := byteSize * 8
	blockAlign := channels * byteSize
	byteRate := encoding.SampleRate * blockAlign

	formatTag := uint16(wavFormatPCM)
	switch encoding.Format {
	case EncodingALaw:
		formatTag = wavFormatALaw
	case EncodingMulaw:
		formatTag = wavFormatMulaw
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, formatTag)
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(encoding.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV extracts the PCM payload and its encoding from a RIFF/WAVE
// container. Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) ([]byte, EncodingInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, EncodingInfo{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		encoding  EncodingInfo
		hasFormat bool
	)
	for offset := 12; offset+8 <= len(data); {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(data) {
				return nil, EncodingInfo{}, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			formatTag := binary.LittleEndian.Uint16(data[body : body+2])
			encoding.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			encoding.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample := binary.LittleEndian.Uint16(data[body+14 : body+16])

			switch {
			case formatTag == wavFormatPCM && bitsPerSample == 16:
				encoding.Format = EncodingLinear16
			case formatTag == wavFormatALaw:
				encoding.Format = EncodingALaw
			case formatTag == wavFormatMulaw:
				encoding.Format = EncodingMulaw
			default:
				return nil, EncodingInfo{}, fmt.Errorf("%w: unsupported format %d with %d bits per sample", ErrInvalidWAV, formatTag, bitsPerSample)
			}
			hasFormat = true

		case "data":
			if !hasFormat {
				return nil, EncodingInfo{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			// Streamed containers sometimes carry a placeholder size.
			end := body + chunkSize
			if chunkSize < 0 || end > len(data) {
				end = len(data)
			}
			return data[body:end], encoding, nil
		}

		offset = body + chunkSize + chunkSize%2
	}

	return nil, EncodingInfo{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
}
