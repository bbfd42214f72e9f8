package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/internal/http"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// Source performs the API calls a session needs: one list for the baseline
// snapshot and a streaming connection for events. Connect is re-invoked on
// every reconnect so the path and token are re-derived each time.
type Source interface {
	List(ctx context.Context) (*okapi.List, error)
	Connect(ctx context.Context, resourceVersion string) (*http.StreamResponse, error)
}

// State is a session lifecycle phase.
type State int

// Session lifecycle phases, in the order they are normally entered.
const (
	StateIdle State = iota
	StateSnapshotting
	StateConnected
	StateReconnecting
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSnapshotting:
		return "snapshotting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// rawFrame is the wire shape of one watch notification.
type rawFrame struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object"`
}

// Session is a watch over one resource collection or item. It owns at most
// one live streaming connection (more only when forced) and tracks the
// resource version the stream resumes from.
type Session struct {
	source   Source
	logger   okapi.Logger
	resource string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	started  bool
	snapshot *okapi.List
	rv       string
	conns    map[io.Closer]struct{}

	events   chan okapi.WatchEvent
	readers  sync.WaitGroup
	stopOnce sync.Once
}

// NewSession creates an idle session. The resource name appears only in
// logs. logger may be nil.
func NewSession(source Source, logger okapi.Logger, resource string) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		source:   source,
		logger:   logger,
		resource: resource,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		conns:    make(map[io.Closer]struct{}),
		events:   make(chan okapi.WatchEvent, constants.WatchEventBufferSize),
	}
}

// TakeSnapshot lists the watched collection once and records its resource
// version as the stream's starting point. It must complete before Start.
func (s *Session) TakeSnapshot(ctx context.Context) error {
	s.mu.Lock()

	if s.state != StateIdle {
		s.mu.Unlock()

		return fmt.Errorf("%w: snapshot already taken in state %s", okapi.ErrSessionStarted, s.state)
	}

	s.state = StateSnapshotting
	s.mu.Unlock()

	list, err := s.source.List(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()

		return fmt.Errorf("taking watch snapshot: %w", err)
	}

	s.mu.Lock()
	s.snapshot = list
	s.rv = list.ResourceVersion()
	s.mu.Unlock()

	return nil
}

// Snapshot returns the baseline collection state, nil before TakeSnapshot.
func (s *Session) Snapshot() *okapi.List {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot
}

// Events returns the notification channel. It is closed after Stop once all
// readers have exited.
func (s *Session) Events() <-chan okapi.WatchEvent {
	return s.events
}

// ResourceVersion returns the version the stream would resume from.
func (s *Session) ResourceVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rv
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Start launches the streaming connection. Connection establishment is
// asynchronous; the outcome arrives on the event channel, beginning with a
// response event per successful (re)connect. Starting an already-started
// session is a no-op unless forced.
func (s *Session) Start(opts ...okapi.StartOption) error {
	options := okapi.DefaultStartOptions()
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return okapi.ErrSessionStopped
	}

	if s.state == StateIdle {
		return fmt.Errorf("%w: take a snapshot before starting", okapi.ErrSnapshotRequired)
	}

	if s.started && !options.Force {
		return nil
	}

	s.started = true
	s.readers.Add(1)

	go s.run(options.RetryLimit)

	return nil
}

// Stop tears down all connections and, once the readers have drained, closes
// the event channel. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateStopped

		for conn := range s.conns {
			_ = conn.Close()
		}

		s.mu.Unlock()
		s.cancel()

		go func() {
			s.readers.Wait()
			close(s.events)
		}()
	})
}

// run is one reader's connect-consume-reconnect loop. remaining is the
// reconnect budget for timeout-class failures; negative means unlimited.
func (s *Session) run(remaining int) {
	defer s.readers.Done()

	for {
		conn, err := s.connect()
		if err != nil {
			if s.stopping() {
				return
			}

			s.sendError(err)

			return
		}

		err = s.consume(conn)

		s.dropConn(conn)
		_ = conn.Close()

		if s.stopping() {
			return
		}

		switch {
		case err == nil || errors.Is(err, io.EOF):
			// Clean end of stream: resume at the current version without
			// consuming the budget.
			s.setState(StateReconnecting)
			s.logReconnect("stream ended")
		case isTimeout(err):
			if remaining == 0 {
				s.sendError(err)

				return
			}

			if remaining > 0 {
				remaining--
			}

			s.setState(StateReconnecting)
			s.logReconnect(err.Error())
		default:
			s.sendError(err)

			return
		}
	}
}

// connect opens a streaming connection at the current resource version and
// emits the response event.
func (s *Session) connect() (io.ReadCloser, error) {
	resp, err := s.source.Connect(s.ctx, s.ResourceVersion())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()

	if s.state == StateStopped {
		s.mu.Unlock()
		_ = resp.Body.Close()

		return nil, okapi.ErrSessionStopped
	}

	s.conns[resp.Body] = struct{}{}
	s.state = StateConnected
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("watch connected", map[string]interface{}{
			"resource":        s.resource,
			"resourceVersion": s.ResourceVersion(),
		})
	}

	s.send(okapi.WatchEvent{Type: okapi.EventResponse, StatusCode: resp.StatusCode})

	return resp.Body, nil
}

// consume reads the stream until it ends, dispatching each complete frame.
func (s *Session) consume(conn io.ReadCloser) error {
	decoder := NewDecoder(constants.MaxFrameBytes)
	buf := make([]byte, constants.StreamReadBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, decodeErr := decoder.Feed(buf[:n])
			for _, frame := range frames {
				s.dispatchFrame(frame)
			}

			if decodeErr != nil {
				return decodeErr
			}
		}

		if err != nil {
			return err
		}
	}
}

// dispatchFrame classifies one decoded frame and emits the matching event.
func (s *Session) dispatchFrame(frame []byte) {
	var raw rawFrame
	if err := json.Unmarshal(frame, &raw); err != nil {
		s.send(okapi.WatchEvent{
			Type: okapi.EventError,
			Err:  fmt.Errorf("decoding watch frame: %w", err),
			Raw:  frame,
		})

		return
	}

	var eventType okapi.EventType

	switch raw.Type {
	case okapi.WatchAdded:
		eventType = okapi.EventCreated
	case okapi.WatchModified:
		eventType = okapi.EventUpdated
	case okapi.WatchDeleted:
		eventType = okapi.EventDeleted
	default:
		s.send(okapi.WatchEvent{
			Type: okapi.EventError,
			Err:  fmt.Errorf("unrecognized watch event type %q", raw.Type),
			Raw:  frame,
		})

		return
	}

	object := &okapi.Object{}
	if err := json.Unmarshal(raw.Object, object); err != nil {
		s.send(okapi.WatchEvent{
			Type: okapi.EventError,
			Err:  fmt.Errorf("decoding watch object: %w", err),
			Raw:  frame,
		})

		return
	}

	s.advance(object.ResourceVersion())
	s.send(okapi.WatchEvent{Type: eventType, Object: object, Raw: frame})
}

// advance moves the tracked resource version to rv. An event without a
// version leaves the cursor where it is.
func (s *Session) advance(rv string) {
	if rv == "" {
		return
	}

	s.mu.Lock()
	s.rv = rv
	s.mu.Unlock()
}

func (s *Session) send(event okapi.WatchEvent) {
	select {
	case s.events <- event:
	case <-s.ctx.Done():
	}
}

func (s *Session) sendError(err error) {
	event := okapi.WatchEvent{Type: okapi.EventError, Err: err}

	statusErr := &okapi.StatusError{}
	if errors.As(err, &statusErr) {
		event.StatusCode = statusErr.StatusCode
	}

	if s.logger != nil {
		s.logger.Error("watch failed", map[string]interface{}{
			"resource": s.resource,
			"error":    err.Error(),
		})
	}

	s.send(event)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == StateStopped
}

func (s *Session) dropConn(conn io.Closer) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Session) logReconnect(reason string) {
	if s.logger == nil {
		return
	}

	s.logger.Warn("watch reconnecting", map[string]interface{}{
		"resource":        s.resource,
		"resourceVersion": s.ResourceVersion(),
		"reason":          reason,
	})
}

// isTimeout reports whether err is a socket-timeout-class transport error.
// Only these consume the reconnect budget.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}
