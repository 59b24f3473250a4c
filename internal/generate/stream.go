package generate

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// Stream is a lazy, finite, non-restartable sequence of text fragments.
//
//	s, err := gen.Stream(ctx, prompt)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Next() {
//		fmt.Print(s.Fragment())
//	}
//	if err := s.Err(); err != nil { ... }
//
// The stream has completed when Next returns false and Err is nil. A
// consumer may stop early by calling Close; the producer is then released.
type Stream struct {
	pull  func() (string, error)
	close func() error

	frag string
	err  error
	done bool

	closeOnce sync.Once
	closeErr  error
}

// NewStream builds a stream from a pull function that returns io.EOF at
// the end. closeFn may be nil.
func NewStream(pull func() (string, error), closeFn func() error) *Stream {
	return &Stream{pull: pull, close: closeFn}
}

// FromString returns a stream that yields text as a single fragment.
func FromString(text string) *Stream {
	sent := false
	return NewStream(func() (string, error) {
		if sent {
			return "", io.EOF
		}
		sent = true
		return text, nil
	}, nil)
}

// FromError returns a stream that fails on the first Next.
func FromError(err error) *Stream {
	return NewStream(func() (string, error) { return "", err }, nil)
}

// Next advances to the next non-empty fragment.
func (s *Stream) Next() bool {
	for !s.done {
		f, err := s.pull()
		if err != nil {
			s.done = true
			s.frag = ""
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			_ = s.Close()
			return false
		}
		if f != "" {
			s.frag = f
			return true
		}
	}
	return false
}

// Fragment returns the fragment Next advanced to.
func (s *Stream) Fragment() string {
	return s.frag
}

// Err returns the error that ended the stream, or nil on completion.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the producer. It is safe to call more than once and
// after the stream has ended.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		if s.close != nil {
			s.closeErr = s.close()
		}
	})
	return s.closeErr
}

// Collect drains s and returns the concatenated text.
func Collect(s *Stream) (string, error) {
	defer func() { _ = s.Close() }()

	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.Fragment())
	}
	return sb.String(), s.Err()
}

// Tee returns a stream yielding the same fragments as s and, once s has
// completed without error, calls onDone with the full text.
func Tee(s *Stream, onDone func(full string)) *Stream {
	var sb strings.Builder
	return NewStream(func() (string, error) {
		if s.Next() {
			sb.WriteString(s.Fragment())
			return s.Fragment(), nil
		}
		if err := s.Err(); err != nil {
			return "", err
		}
		onDone(sb.String())
		return "", io.EOF
	}, s.Close)
}
