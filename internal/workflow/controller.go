// Package workflow coordinates the scan, validate, locate, submit,
// annotate pipeline and the teacher QR generation flow.
package workflow

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"qrcheckin/internal/device"
	"qrcheckin/internal/geo"
	"qrcheckin/internal/history"
	"qrcheckin/internal/qr"
	"qrcheckin/internal/queue"
	"qrcheckin/internal/recorder"
)

// ErrEmptySessionID rejects teacher generations with no session id.
var ErrEmptySessionID = errors.New("Session ID cannot be empty.")

// Role selects which surface the user is on.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// State is the display state of the student flow.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateLoading  State = "loading"
	StateSuccess  State = "success"
	StateError    State = "error"
)

// Status is the transient UI-facing view of the workflow. Not persisted.
type Status struct {
	State   State           `json:"state"`
	Message string          `json:"message,omitempty"`
	Data    *history.Record `json:"data,omitempty"`
}

// Deps are the capability services the controller drives. All of them are
// stateless from the controller's point of view.
type Deps struct {
	Device   *device.Provider
	Locator  geo.Locator
	Recorder recorder.Recorder
	History  *history.Store
	Queue    queue.Queue
}

// Controller owns the application state: current role, workflow status,
// the active scan session, and a display cache of the history list that
// is replaced after every store mutation.
type Controller struct {
	deps Deps

	mu      sync.Mutex
	role    Role
	status  Status
	history []history.Record
	scanner *qr.Scanner
}

// NewController builds a controller in the idle student state.
func NewController(deps Deps) *Controller {
	return &Controller{deps: deps, role: RoleStudent, status: Status{State: StateIdle}}
}

// Init loads the history cache from the store.
func (c *Controller) Init(ctx context.Context) error {
	records, err := c.deps.History.List(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.history = records
	c.mu.Unlock()
	return nil
}

// Role returns the active role.
func (c *Controller) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Status returns the current display status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// History returns the cached record list.
func (c *Controller) History() []history.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]history.Record, len(c.history))
	copy(out, c.history)
	return out
}

// SwitchRole changes surfaces and resets transient state for a clean
// transition. Any active capture session is torn down, and in-flight
// annotations from prior submissions lose their display target.
func (c *Controller) SwitchRole(role Role) {
	if role != RoleStudent && role != RoleTeacher {
		return
	}
	c.teardownScanner()
	c.mu.Lock()
	c.role = role
	c.status = Status{State: StateIdle}
	c.mu.Unlock()
}

// StartScan opens a capture session. With a frame source the scanner runs
// until its first hit; without one the controller just enters Scanning and
// waits for decoded text to arrive via HandleScan.
func (c *Controller) StartScan(ctx context.Context, source qr.FrameSource) {
	c.teardownScanner()

	c.mu.Lock()
	c.status = Status{State: StateScanning}
	if source == nil {
		c.mu.Unlock()
		return
	}
	scanner := qr.NewScanner(source,
		func(text string) { c.HandleScan(ctx, text) },
		func(err error) { c.handleScanError(err) },
	)
	c.scanner = scanner
	c.mu.Unlock()

	scanner.Start(ctx)
}

// CancelScan tears down the capture session and returns to idle.
func (c *Controller) CancelScan() {
	c.teardownScanner()
	c.mu.Lock()
	if c.status.State == StateScanning {
		c.status = Status{State: StateIdle}
	}
	c.mu.Unlock()
}

func (c *Controller) teardownScanner() {
	c.mu.Lock()
	scanner := c.scanner
	c.scanner = nil
	c.mu.Unlock()
	if scanner != nil {
		scanner.Stop()
	}
}

// handleScanError receives per-frame misses and capture failures. Misses
// are expected and only logged; capture failures surface as an error
// state so the user can re-initiate.
func (c *Controller) handleScanError(err error) {
	if errors.Is(err, qr.ErrNoCode) {
		return
	}
	log.Printf("QR scanner error: %v", err)
	c.setStatus(Status{State: StateError, Message: err.Error()})
	scansTotal.WithLabelValues("capture_error").Inc()
}

// HandleScan runs the student pipeline on raw decoded text: parse,
// locate, resolve device identity, submit, persist, display. Steps are
// strictly sequential; only annotation is decoupled to run after display.
func (c *Controller) HandleScan(ctx context.Context, decodedText string) Status {
	c.teardownScanner()
	c.setStatus(Status{State: StateLoading, Message: "Processing attendance..."})

	payload, err := qr.ParsePayload(decodedText)
	if err != nil {
		scansTotal.WithLabelValues("invalid_payload").Inc()
		return c.fail("Invalid QR code. Please scan the correct code provided by your administrator.")
	}
	scansTotal.WithLabelValues("decoded").Inc()

	point, err := c.deps.Locator.Current(ctx)
	if err != nil {
		submissionsTotal.WithLabelValues("location_error").Inc()
		return c.fail(err.Error())
	}

	deviceID, err := c.deps.Device.Identifier(ctx)
	if err != nil {
		log.Printf("device identifier unavailable: %v", err)
		submissionsTotal.WithLabelValues("device_error").Inc()
		return c.fail("Could not retrieve device identifier. Please refresh the page.")
	}

	event := history.Event{
		DeviceID:  deviceID,
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
		SessionID: payload.SessionID,
		EventType: payload.EventType,
	}

	receipt, err := c.deps.Recorder.Submit(ctx, event)
	if err != nil {
		submissionsTotal.WithLabelValues("rejected").Inc()
		return c.fail("Submission failed: " + err.Error())
	}

	records, err := c.deps.History.Append(ctx, event)
	if err != nil {
		log.Printf("history append failed: %v", err)
		submissionsTotal.WithLabelValues("store_error").Inc()
		return c.fail("Attendance was recorded but could not be saved locally.")
	}
	record := records[0]
	submissionsTotal.WithLabelValues("ok").Inc()

	status := Status{State: StateSuccess, Message: receipt.Message, Data: &record}
	c.mu.Lock()
	c.history = records
	c.status = status
	c.mu.Unlock()

	// Fire-and-forget enhancement; no ordering guarantee relative to
	// later user actions.
	if c.deps.Queue != nil {
		job := queue.Job{Timestamp: record.Timestamp, Latitude: point.Latitude, Longitude: point.Longitude}
		if err := c.deps.Queue.Publish(ctx, job); err != nil {
			log.Printf("annotation publish failed: %v", err)
		}
	}

	return status
}

func (c *Controller) fail(message string) Status {
	status := Status{State: StateError, Message: message}
	c.setStatus(status)
	return status
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// RefreshAnnotation updates the displayed record after the annotator has
// amended the store. The update applies only while the display still
// shows the success view for that same record; anything later wins over
// this late arrival.
func (c *Controller) RefreshAnnotation(ctx context.Context, record history.Record) {
	records, err := c.deps.History.List(ctx)
	if err != nil {
		log.Printf("history refresh failed: %v", err)
		return
	}
	c.mu.Lock()
	c.history = records
	if c.status.State == StateSuccess && c.status.Data != nil && c.status.Data.Timestamp == record.Timestamp {
		c.status.Data = &record
	}
	c.mu.Unlock()
}

// GenerateQR is the teacher sub-flow: validate, build the payload, and
// render it. Stateless between generations and independent of history.
func (c *Controller) GenerateQR(sessionID string, eventType qr.EventType) ([]byte, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	payload := qr.Payload{SessionID: sessionID, EventType: eventType}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	png, err := qr.Encode(payload)
	if err != nil {
		return nil, err
	}
	generatedTotal.Inc()
	return png, nil
}
