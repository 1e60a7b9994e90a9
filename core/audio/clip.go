package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ContainerWAV = "wav"
	ContainerRaw = "raw"
)

// Utterance is one user-spoken audio segment captured between the start and
// stop of a recording.
type Utterance struct {
	PCM      []byte
	Encoding EncodingInfo
	Duration time.Duration
}

// Len returns the number of PCM bytes in the utterance.
func (u *Utterance) Len() int {
	if u == nil {
		return 0
	}
	return len(u.PCM)
}

// WAV returns the utterance wrapped in a WAV container.
func (u *Utterance) WAV() []byte {
	if u == nil {
		return EncodeWAV(nil, GetDefaultEncodingInfo())
	}
	return EncodeWAV(u.PCM, u.Encoding)
}

// Reader streams the WAV encoded utterance.
func (u *Utterance) Reader() io.Reader {
	return bytes.NewReader(u.WAV())
}

// Clip is audio ready for playback, either a WAV container or raw PCM
// described by Encoding.
type Clip struct {
	Data      []byte
	Container string
	Encoding  EncodingInfo
}

// NewWAVClip creates a clip holding a WAV container.
func NewWAVClip(data []byte) *Clip {
	return &Clip{Data: data, Container: ContainerWAV}
}

// NewRawClip creates a clip holding raw PCM audio.
func NewRawClip(pcm []byte, encoding EncodingInfo) *Clip {
	return &Clip{Data: pcm, Container: ContainerRaw, Encoding: encoding}
}

// PCM returns the clip's playable samples.
func (c *Clip) PCM() ([]byte, EncodingInfo, error) {
	if c == nil {
		return nil, EncodingInfo{}, fmt.Errorf("nil clip")
	}

	switch c.Container {
	case ContainerWAV:
		return DecodeWAV(c.Data)
	case ContainerRaw, "":
		encoding := c.Encoding
		if encoding.IsZero() {
			encoding = GetDefaultEncodingInfo()
		}
		return c.Data, encoding, nil
	}

	return nil, EncodingInfo{}, fmt.Errorf("unsupported clip container %q", c.Container)
}

// Duration estimates the clip's playback length.
func (c *Clip) Duration() time.Duration {
	pcm, encoding, err := c.PCM()
	if err != nil {
		return 0
	}
	return encoding.Duration(len(pcm))
}

// LoadClip reads a clip from disk. Files with a .wav extension are treated as
// WAV containers, everything else as raw default-encoded PCM.
func LoadClip(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), "."+ContainerWAV) {
		if _, _, err := DecodeWAV(data); err != nil {
			return nil, fmt.Errorf("decode clip %s: %w", path, err)
		}
		return NewWAVClip(data), nil
	}

	return NewRawClip(data, GetDefaultEncodingInfo()), nil
}
