// Package capture turns camera frames into embeddable still images and
// classifies device location results.
package capture

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
)

// Facing selects the camera that feeds a stream.
type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

var (
	// ErrNoDevice reports that no camera can provide frames.
	ErrNoDevice = errors.New("capture: no camera available")
	// ErrNotStarted reports a snapshot without an active stream.
	ErrNotStarted = errors.New("capture: camera is not active")
	// ErrUnknownFacing reports an unrecognized facing name.
	ErrUnknownFacing = errors.New("capture: unknown facing")
)

// ParseFacing accepts front/back as well as the user/environment names.
func ParseFacing(value string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "front", string(FacingFront):
		return FacingFront, nil
	case "back", string(FacingBack):
		return FacingBack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFacing, value)
	}
}

// Opposite returns the other camera.
func (f Facing) Opposite() Facing {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// Stream yields frames from a started camera.
type Stream interface {
	Frame() (image.Image, error)
	Close() error
}

// Camera starts streams for a facing.
type Camera interface {
	Start(facing Facing) (Stream, error)
}

// Session owns the active stream of one camera.
type Session struct {
	mu     sync.Mutex
	camera Camera
	facing Facing
	stream Stream
}

// NewSession prepares a session; no stream is started until Start.
func NewSession(camera Camera, facing Facing) *Session {
	if facing == "" {
		facing = FacingFront
	}
	return &Session{camera: camera, facing: facing}
}

// Facing reports the camera the session starts.
func (s *Session) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// Active reports whether a stream is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Start stops any running stream and starts a new one.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartLocked()
}

// Toggle switches to the opposite camera and restarts the stream.
func (s *Session) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facing = s.facing.Opposite()
	return s.restartLocked()
}

// Stop releases the running stream. Stopping an idle session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Snapshot encodes the current frame of the running stream.
func (s *Session) Snapshot() (DataURI, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return "", ErrNotStarted
	}
	frame, err := stream.Frame()
	if err != nil {
		return "", fmt.Errorf("capture frame: %w", err)
	}
	return Snapshot(frame)
}

func (s *Session) restartLocked() error {
	if err := s.stopLocked(); err != nil {
		return err
	}
	if s.camera == nil {
		return ErrNoDevice
	}
	stream, err := s.camera.Start(s.facing)
	if err != nil {
		return fmt.Errorf("start %s camera: %w", s.facing, err)
	}
	s.stream = stream
	return nil
}

func (s *Session) stopLocked() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

// StillCamera serves one fixed image as the frame of every stream.
type StillCamera struct {
	frame image.Image
}

// NewStillCamera wraps frame; a nil frame behaves as a missing device.
func NewStillCamera(frame image.Image) *StillCamera {
	return &StillCamera{frame: frame}
}

func (c *StillCamera) Start(Facing) (Stream, error) {
	if c == nil || c.frame == nil {
		return nil, ErrNoDevice
	}
	return &stillStream{frame: c.frame}, nil
}

type stillStream struct {
	mu     sync.Mutex
	frame  image.Image
	closed bool
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrNotStarted
	}
	return s.frame, nil
}

func (s *stillStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
