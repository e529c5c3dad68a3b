package qr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

// FrameSource is the camera capability: it yields successive frames until
// the capture session ends. Start errors (no camera, permission denied)
// surface from the first Next call with descriptive text.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// ErrNoCode is reported through the miss callback for frames that contain
// no decodable code. These are expected per-frame misses, not terminal.
var ErrNoCode = errors.New("no QR code in frame")

// DecodeImage decodes a single frame, returning the raw text of the first
// QR code found.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("prepare frame: %w", err)
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", ErrNoCode
	}
	return result.GetText(), nil
}

// Scanner runs a continuous scan session over a frame source with
// single-shot semantics: the first successful decode fires onDecode once
// and ends the session.
type Scanner struct {
	source   FrameSource
	onDecode func(text string)
	onMiss   func(err error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

// NewScanner builds a scanner. onDecode receives the raw decoded text;
// onMiss receives per-frame decode misses and capture failures.
func NewScanner(source FrameSource, onDecode func(string), onMiss func(error)) *Scanner {
	if onMiss == nil {
		onMiss = func(error) {}
	}
	return &Scanner{source: source, onDecode: onDecode, onMiss: onMiss}
}

// Start begins reading frames. It returns immediately; decoding happens on
// a background goroutine until the first hit, Stop, or ctx cancellation.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

func (s *Scanner) run(ctx context.Context) {
	defer close(s.done)
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := s.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Capture failure: report and end the session so no
			// half-started capture lingers.
			s.onMiss(fmt.Errorf("camera capture failed: %w", err))
			s.Stop()
			return
		}
		text, err := DecodeImage(frame)
		if err != nil {
			s.onMiss(err)
			continue
		}
		s.Stop()
		s.onDecode(text)
		return
	}
}

// Stop tears down the session. Safe to call multiple times and from the
// scan goroutine itself; no frames are processed after it returns to an
// external caller.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = s.source.Close()
}

// Wait blocks until the scan goroutine has exited. Only valid after Start.
func (s *Scanner) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
