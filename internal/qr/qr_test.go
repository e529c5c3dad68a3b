package qr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeToImage(t *testing.T, p Payload) image.Image {
	t.Helper()
	data, err := Encode(p)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := []Payload{
		{SessionID: "MATH101-Lec1", EventType: EventEntry},
		{SessionID: "PHYS202", EventType: EventExit},
		{SessionID: "a", EventType: EventEntry},
	}
	for _, p := range payloads {
		img := encodeToImage(t, p)
		text, err := DecodeImage(img)
		require.NoError(t, err)
		decoded, err := ParsePayload(text)
		require.NoError(t, err)
		assert.Equal(t, p, decoded)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	p := Payload{SessionID: "MATH101", EventType: EventEntry}
	a, err := Encode(p)
	require.NoError(t, err)
	b, err := Encode(p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeRejectsInvalidPayload(t *testing.T) {
	_, err := Encode(Payload{SessionID: "", EventType: EventEntry})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Encode(Payload{SessionID: "ok", EventType: "arrival"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParsePayload(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{"valid", `{"sessionId":"S1","eventType":"entry"}`, nil},
		{"not json", `hello`, ErrInvalidPayload},
		{"missing event type", `{"sessionId":"S1"}`, ErrInvalidPayload},
		{"missing session", `{"eventType":"exit"}`, ErrInvalidPayload},
		{"unknown event type", `{"sessionId":"S1","eventType":"arrival"}`, ErrInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePayload(tc.text)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestDecodeImageNoCode(t *testing.T) {
	_, err := DecodeImage(image.NewRGBA(image.Rect(0, 0, 64, 64)))
	assert.ErrorIs(t, err, ErrNoCode)
}

type fakeSource struct {
	mu     sync.Mutex
	frames []image.Image
	err    error
	calls  int
	closed int
}

func (f *fakeSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.frames) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("out of frames")
	}
	img := f.frames[0]
	f.frames = f.frames[1:]
	return img, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSource) stats() (calls, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.closed
}

func TestScannerSingleShot(t *testing.T) {
	qrFrame := encodeToImage(t, Payload{SessionID: "S1", EventType: EventEntry})
	blank := image.NewRGBA(image.Rect(0, 0, 64, 64))
	source := &fakeSource{frames: []image.Image{blank, qrFrame}}

	decoded := make(chan string, 1)
	var misses int
	var mu sync.Mutex
	scanner := NewScanner(source,
		func(text string) { decoded <- text },
		func(error) { mu.Lock(); misses++; mu.Unlock() },
	)
	scanner.Start(context.Background())

	select {
	case text := <-decoded:
		p, err := ParsePayload(text)
		require.NoError(t, err)
		assert.Equal(t, "S1", p.SessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("scan never completed")
	}
	scanner.Wait()

	mu.Lock()
	assert.Equal(t, 1, misses, "one blank frame miss expected")
	mu.Unlock()

	calls, closed := source.stats()
	assert.Equal(t, 2, calls, "no frames processed after first hit")
	assert.Equal(t, 1, closed)
	assert.Empty(t, decoded, "success callback fires exactly once")
}

func TestScannerCaptureFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("camera permission denied")}

	errs := make(chan error, 1)
	scanner := NewScanner(source,
		func(string) { t.Error("unexpected decode") },
		func(err error) { errs <- err },
	)
	scanner.Start(context.Background())

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "camera capture failed")
		assert.Contains(t, err.Error(), "permission denied")
	case <-time.After(5 * time.Second):
		t.Fatal("capture failure never surfaced")
	}
	scanner.Wait()

	_, closed := source.stats()
	assert.Equal(t, 1, closed, "no half-started capture session left behind")
}

func TestScannerStopIdempotent(t *testing.T) {
	source := &fakeSource{frames: []image.Image{image.NewRGBA(image.Rect(0, 0, 8, 8))}}
	scanner := NewScanner(source, func(string) {}, nil)
	scanner.Start(context.Background())

	scanner.Stop()
	scanner.Stop()
	scanner.Stop()
	scanner.Wait()

	_, closed := source.stats()
	assert.Equal(t, 1, closed)
}
