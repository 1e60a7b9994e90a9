package deepgram

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/koscakluka/ema-assistant/core/audio"
)

var liveSampleRates = []int{8000, 16000, 24000, 32000, 44100, 48000}

// SetEncodingParams describes raw audio in the encoding for a live listen
// request. It fails for audio the live endpoint cannot decode.
func SetEncodingParams(query url.Values, encoding audio.EncodingInfo) error {
	if !slices.Contains(liveSampleRates, encoding.SampleRate) {
		return fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format.Name())
		}
	default:
		return fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	query.Set("encoding", encoding.Format.Name())
	query.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	query.Set("channels", strconv.Itoa(max(encoding.Channels, 1)))
	return nil
}
