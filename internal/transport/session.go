// internal/transport/session.go
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
)

// Error marks a serial handle or I/O failure. It is never retried at the
// batch level; the poll loop escalates it to the session reconnect path.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

var errNotOpen = errors.New("session not open")

// State is the session lifecycle state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDegraded:
		return "degraded"
	default:
		return "closed"
	}
}

// Config describes the serial link. All values are supplied externally.
type Config struct {
	Port     string
	BaudRate int
	DataBits int
	Parity   string // "N", "E", "O"
	StopBits int

	// Timeout bounds every port read.
	Timeout time.Duration

	// OpenRetries and OpenRetryDelay govern open and reconnect attempts.
	OpenRetries    int
	OpenRetryDelay time.Duration
}

// DialFunc opens the underlying handle. Injected by tests.
type DialFunc func() (io.ReadWriteCloser, error)

// Session owns one serial bus. All transactions on the bus go through
// exactly one session; the polling loop is its only user, so no locking.
type Session struct {
	cfg   Config
	dial  DialFunc
	log   logrus.FieldLogger
	port  io.ReadWriteCloser
	state State
}

// Open opens a session on a real serial port with bounded retries.
// Exhausting the retries is a fatal startup condition for the caller.
func Open(cfg Config, log logrus.FieldLogger) (*Session, error) {
	dial := func() (io.ReadWriteCloser, error) {
		return serial.Open(&serial.Config{
			Address:  cfg.Port,
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			Parity:   cfg.Parity,
			StopBits: cfg.StopBits,
			Timeout:  cfg.Timeout,
		})
	}
	return OpenWith(cfg, dial, log)
}

// OpenWith opens a session using the provided dialer.
func OpenWith(cfg Config, dial DialFunc, log logrus.FieldLogger) (*Session, error) {
	s := &Session{cfg: cfg, dial: dial, log: log}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) open() error {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.OpenRetries; attempt++ {
		port, err := s.dial()
		if err == nil {
			s.port = port
			s.state = StateOpen
			s.log.WithField("port", s.cfg.Port).Info("serial port opened")
			return nil
		}

		lastErr = err
		s.log.WithError(err).Errorf("failed to open serial port (attempt %d/%d)", attempt, s.cfg.OpenRetries)
		if attempt < s.cfg.OpenRetries {
			time.Sleep(s.cfg.OpenRetryDelay)
		}
	}

	return &Error{Op: "open", Err: lastErr}
}

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

// Reset discards bytes sitting in the port buffers, when the handle
// supports it. Best effort.
func (s *Session) Reset() error {
	if s.state != StateOpen || s.port == nil {
		return &Error{Op: "reset", Err: errNotOpen}
	}
	if f, ok := s.port.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			s.log.WithError(err).Debug("buffer flush failed")
		}
	}
	return nil
}

// Send writes one request frame onto the bus.
func (s *Session) Send(frame []byte) error {
	if s.state != StateOpen || s.port == nil {
		return &Error{Op: "write", Err: errNotOpen}
	}
	if _, err := s.port.Write(frame); err != nil {
		s.degrade(err)
		return &Error{Op: "write", Err: err}
	}
	return nil
}

// Receive reads up to n bytes, each read bounded by the configured
// timeout. A timeout is not an error: short or empty frames are
// classified by the frame parser.
func (s *Session) Receive(n int) ([]byte, error) {
	if s.state != StateOpen || s.port == nil {
		return nil, &Error{Op: "read", Err: errNotOpen}
	}

	buf := make([]byte, n)
	total := 0
	for total < n {
		r, err := s.port.Read(buf[total:])
		total += r
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) || errors.Is(err, io.EOF) {
				break
			}
			s.degrade(err)
			return nil, &Error{Op: "read", Err: err}
		}
		if r == 0 {
			break
		}
	}
	return buf[:total], nil
}

// Reconnect closes and reopens the handle with the bounded-retry rule.
// On failure the session stays degraded; the caller retries next cycle.
func (s *Session) Reconnect() error {
	s.closePort()
	if err := s.open(); err != nil {
		s.state = StateDegraded
		return err
	}
	return nil
}

// Close releases the handle. Safe on every exit path.
func (s *Session) Close() error {
	err := s.closePort()
	s.state = StateClosed
	return err
}

func (s *Session) degrade(err error) {
	s.log.WithError(err).Error("serial i/o failure, session degraded")
	s.closePort()
	s.state = StateDegraded
}

func (s *Session) closePort() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
