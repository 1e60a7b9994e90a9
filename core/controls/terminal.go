package controls

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	keyCtrlC = 0x03
	keyEnter = '\r'
	keySpace = ' '
)

// Terminal turns key presses on a terminal into button presses. Space and
// enter press the button. Other keys can be bound with [WithKey].
type Terminal struct {
	in     io.Reader
	fd     int
	button *ChannelButton

	keys        map[byte]func()
	onInterrupt func()
}

type TerminalOption func(*Terminal)

// WithKey runs action whenever key is read.
func WithKey(key byte, action func()) TerminalOption {
	return func(t *Terminal) { t.keys[key] = action }
}

// WithInterrupt runs action when ctrl+c is read. Raw mode suppresses the
// interrupt signal, so the process has to be stopped from here.
func WithInterrupt(action func()) TerminalOption {
	return func(t *Terminal) { t.onInterrupt = action }
}

// NewTerminal reads keys from stdin.
func NewTerminal(opts ...TerminalOption) *Terminal {
	return newTerminal(os.Stdin, int(os.Stdin.Fd()), opts...)
}

func newTerminal(in io.Reader, fd int, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		in:     in,
		fd:     fd,
		button: NewChannelButton(),
		keys:   map[byte]func(){},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Terminal) WaitForPress(ctx context.Context) error {
	return t.button.WaitForPress(ctx)
}

// Run reads keys until ctx is done or input ends. When the input is a
// terminal it is put in raw mode for the duration.
func (t *Terminal) Run(ctx context.Context) error {
	if t.fd >= 0 && term.IsTerminal(t.fd) {
		oldState, err := term.MakeRaw(t.fd)
		if err != nil {
			return err
		}
		defer term.Restore(t.fd, oldState)
	}

	readErr := make(chan error, 1)
	go func() { readErr <- t.readKeys() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-readErr:
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

func (t *Terminal) readKeys() error {
	buf := make([]byte, 1)
	for {
		n, err := t.in.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		t.handleKey(buf[0])
	}
}

func (t *Terminal) handleKey(key byte) {
	switch key {
	case keySpace, keyEnter, '\n':
		t.button.Press()
	case keyCtrlC:
		if t.onInterrupt != nil {
			t.onInterrupt()
		}
	default:
		if action, ok := t.keys[key]; ok {
			action()
		}
	}
}

// Drain drops a pending press, if any.
func (t *Terminal) Drain() { t.button.Drain() }

// IsTerminal reports whether stdin is a terminal, i.e. whether [Terminal.Run]
// will switch it to raw mode.
func IsTerminal() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// RawModeWriter returns a writer for output shown while a [Terminal] runs.
// Raw mode disables output post-processing, so line feeds are written as
// carriage return plus line feed.
func RawModeWriter(w io.Writer) io.Writer { return crlfWriter{w: w} }

type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
