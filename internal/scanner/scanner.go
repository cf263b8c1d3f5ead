// Package scanner implements a streaming recognizer for OSC escape
// sequences (ESC ] payload BEL, or ESC ] payload ESC \).
//
// The scanner sits between the pty master and the real terminal. Plain
// bytes pass through untouched and in order; recognized OSC frames are
// consumed and their payloads handed to a callback. State persists across
// Write calls, so a frame split across read boundaries behaves exactly
// like one delivered whole.
package scanner

import (
	"io"
)

const (
	escByte = 0x1b
	belByte = 0x07
)

// DefaultMaxPayload bounds how much payload a single frame may accumulate.
// A stream that opens a frame and never terminates it would otherwise grow
// the buffer without limit.
const DefaultMaxPayload = 1 << 20

type state int

const (
	statePlain      state = iota
	stateEsc              // held an ESC, waiting to see if ']' follows
	statePayload          // inside a frame, accumulating payload
	statePayloadEsc       // held an ESC inside a frame, waiting for '\'
)

// Options configure a Scanner.
type Options struct {
	// Out receives all passthrough bytes. Required.
	Out io.Writer

	// OnPayload is invoked with each completed frame's payload, decoded
	// as text. May be nil.
	OnPayload func(string)

	// Echo forwards the raw bytes of recognized frames to Out in addition
	// to capturing them. Default is to consume frames silently.
	Echo bool

	// MaxPayload overrides DefaultMaxPayload when positive. A frame
	// exceeding the cap is abandoned and its raw bytes replayed to Out,
	// as if it had never been recognized.
	MaxPayload int
}

// Scanner is a streaming OSC state machine. It implements io.Writer over
// the raw output stream; it is not safe for concurrent use and belongs to
// the single output-forwarding flow.
type Scanner struct {
	out        io.Writer
	onPayload  func(string)
	echo       bool
	maxPayload int

	state   state
	payload []byte
	raw     []byte // raw bytes of the sequence in progress, for echo and replay
}

// New creates a Scanner in the plain state.
func New(opts Options) *Scanner {
	maxPayload := opts.MaxPayload
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Scanner{
		out:        opts.Out,
		onPayload:  opts.OnPayload,
		echo:       opts.Echo,
		maxPayload: maxPayload,
	}
}

// Write advances the state machine over p. Plain bytes are forwarded to
// the output writer as soon as they are classified; frame bytes are
// withheld until the frame completes or is abandoned.
func (s *Scanner) Write(p []byte) (int, error) {
	runStart := -1 // start of the current plain run within p

	flushRun := func(end int) error {
		if runStart < 0 {
			return nil
		}
		start := runStart
		runStart = -1
		_, err := s.out.Write(p[start:end])
		return err
	}

	for i := 0; i < len(p); i++ {
		b := p[i]

		switch s.state {
		case statePlain:
			if b == escByte {
				if err := flushRun(i); err != nil {
					return i, err
				}
				s.state = stateEsc
				s.raw = append(s.raw[:0], escByte)
			} else if runStart < 0 {
				runStart = i
			}

		case stateEsc:
			switch b {
			case ']':
				s.state = statePayload
				s.payload = s.payload[:0]
				s.raw = append(s.raw, b)
			case escByte:
				// The held ESC was not an introducer, but the new one
				// still might be: release the old, hold the new.
				if _, err := s.out.Write([]byte{escByte}); err != nil {
					return i, err
				}
				s.raw = append(s.raw[:0], escByte)
			default:
				// Not an OSC introducer (e.g. a CSI sequence). Release
				// the held ESC and this byte untouched.
				if _, err := s.out.Write([]byte{escByte, b}); err != nil {
					return i, err
				}
				s.state = statePlain
				s.raw = s.raw[:0]
			}

		case statePayload:
			switch b {
			case belByte:
				s.raw = append(s.raw, b)
				if err := s.complete(); err != nil {
					return i, err
				}
			case escByte:
				s.state = statePayloadEsc
				s.raw = append(s.raw, b)
			default:
				s.payload = append(s.payload, b)
				s.raw = append(s.raw, b)
				if len(s.payload) > s.maxPayload {
					if err := s.abandon(); err != nil {
						return i, err
					}
				}
			}

		case statePayloadEsc:
			if b == '\\' {
				s.raw = append(s.raw, b)
				if err := s.complete(); err != nil {
					return i, err
				}
			} else {
				// The ESC was literal payload content, not an ST.
				s.payload = append(s.payload, escByte, b)
				s.raw = append(s.raw, b)
				s.state = statePayload
				if len(s.payload) > s.maxPayload {
					if err := s.abandon(); err != nil {
						return i, err
					}
				}
			}
		}
	}

	if err := flushRun(len(p)); err != nil {
		return len(p), err
	}
	return len(p), nil
}

// Flush handles end of stream. A lone held ESC is forwarded so no
// legitimate terminal byte is lost; an open frame is discarded silently
// without producing a payload.
func (s *Scanner) Flush() error {
	var err error
	if s.state == stateEsc {
		_, err = s.out.Write([]byte{escByte})
	}
	s.reset()
	return err
}

// complete finishes the current frame: echo its raw bytes if configured,
// then deliver the payload.
func (s *Scanner) complete() error {
	payload := string(s.payload)
	var err error
	if s.echo {
		_, err = s.out.Write(s.raw)
	}
	s.reset()
	if s.onPayload != nil {
		s.onPayload(payload)
	}
	return err
}

// abandon gives up on an over-long frame: its raw bytes are replayed to
// the output exactly as received and scanning resumes in the plain state.
func (s *Scanner) abandon() error {
	raw := s.raw
	s.state = statePlain
	s.payload = s.payload[:0]
	_, err := s.out.Write(raw)
	s.raw = s.raw[:0]
	return err
}

func (s *Scanner) reset() {
	s.state = statePlain
	s.payload = s.payload[:0]
	s.raw = s.raw[:0]
}
