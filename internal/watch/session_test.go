package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/internal/http"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnReset = errors.New("connection reset by peer")

// timeoutError satisfies net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// scriptedStream serves fixed bytes, then EOF or a scripted error.
type scriptedStream struct {
	reader io.Reader
	err    error
	closed atomic.Bool
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	if err != nil && errors.Is(err, io.EOF) && s.err != nil {
		return n, s.err
	}

	return n, err
}

func (s *scriptedStream) Close() error {
	s.closed.Store(true)

	return nil
}

// closeTracker records that the session closed its connection.
type closeTracker struct {
	io.ReadCloser

	closed atomic.Bool
}

func (c *closeTracker) Close() error {
	c.closed.Store(true)

	return c.ReadCloser.Close()
}

// fakeSource scripts the session's list and connect calls.
type fakeSource struct {
	mu        sync.Mutex
	list      *okapi.List
	listErr   error
	connectFn func(call int, resourceVersion string) (*http.StreamResponse, error)
	calls     int
	rvs       []string
}

func (f *fakeSource) List(ctx context.Context) (*okapi.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.list, nil
}

func (f *fakeSource) Connect(ctx context.Context, resourceVersion string) (*http.StreamResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.rvs = append(f.rvs, resourceVersion)
	connectFn := f.connectFn
	f.mu.Unlock()

	return connectFn(call, resourceVersion)
}

func (f *fakeSource) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listErr = err
}

func (f *fakeSource) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *fakeSource) recordedVersions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	versions := make([]string, len(f.rvs))
	copy(versions, f.rvs)

	return versions
}

func newPodList(resourceVersion string) *okapi.List {
	return &okapi.List{
		TypeMeta: okapi.TypeMeta{Kind: "PodList", APIVersion: "v1"},
		Metadata: okapi.ListMeta{ResourceVersion: resourceVersion},
		Items: []okapi.Object{
			{
				TypeMeta: okapi.TypeMeta{Kind: "Pod", APIVersion: "v1"},
				Metadata: okapi.ObjectMeta{Name: "existing", ResourceVersion: resourceVersion},
			},
		},
	}
}

func frame(eventType, name, resourceVersion string) string {
	return fmt.Sprintf(
		`{"type":%q,"object":{"kind":"Pod","metadata":{"name":%q,"resourceVersion":%q}}}`,
		eventType, name, resourceVersion)
}

func framesStream(frames ...string) *scriptedStream {
	return &scriptedStream{reader: strings.NewReader(strings.Join(frames, "\n"))}
}

func failingStream(err error, frames ...string) *scriptedStream {
	return &scriptedStream{reader: strings.NewReader(strings.Join(frames, "\n")), err: err}
}

func pipeStream() (*closeTracker, *io.PipeWriter) {
	pipeReader, pipeWriter := io.Pipe()

	return &closeTracker{ReadCloser: pipeReader}, pipeWriter
}

func respOf(body io.ReadCloser) *http.StreamResponse {
	return &http.StreamResponse{StatusCode: 200, Body: body}
}

func waitEvent(t *testing.T, events <-chan okapi.WatchEvent) okapi.WatchEvent {
	t.Helper()

	select {
	case event, ok := <-events:
		require.True(t, ok, "event channel closed while waiting for an event")

		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")

		return okapi.WatchEvent{}
	}
}

func assertNoEvent(t *testing.T, events <-chan okapi.WatchEvent) {
	t.Helper()

	select {
	case event := <-events:
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitClosed(t *testing.T, events <-chan okapi.WatchEvent) {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel was not closed")
		}
	}
}

func TestSession_TakeSnapshot(t *testing.T) {
	t.Parallel()
	t.Run("records the resource version", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		session := NewSession(source, nil, "pods")

		require.NoError(t, session.TakeSnapshot(context.Background()))
		assert.Equal(t, "100", session.ResourceVersion())
		assert.Equal(t, StateSnapshotting, session.State())

		snapshot := session.Snapshot()
		require.NotNil(t, snapshot)
		assert.Len(t, snapshot.Items, 1)
	})

	t.Run("failure returns the session to idle", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		source.setListErr(errConnReset)

		session := NewSession(source, nil, "pods")

		err := session.TakeSnapshot(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "taking watch snapshot")
		assert.Equal(t, StateIdle, session.State())

		source.setListErr(nil)
		require.NoError(t, session.TakeSnapshot(context.Background()))
	})

	t.Run("second snapshot is rejected", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		session := NewSession(source, nil, "pods")

		require.NoError(t, session.TakeSnapshot(context.Background()))
		require.ErrorIs(t, session.TakeSnapshot(context.Background()), okapi.ErrSessionStarted)
	})
}

func TestSession_StartErrors(t *testing.T) {
	t.Parallel()
	t.Run("before snapshot", func(t *testing.T) {
		t.Parallel()

		session := NewSession(&fakeSource{}, nil, "pods")
		require.ErrorIs(t, session.Start(), okapi.ErrSnapshotRequired)
	})

	t.Run("after stop", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		session := NewSession(source, nil, "pods")

		require.NoError(t, session.TakeSnapshot(context.Background()))
		session.Stop()
		require.ErrorIs(t, session.Start(), okapi.ErrSessionStopped)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestSession_Events(t *testing.T) {
	t.Parallel()
	t.Run("delivers classified events in order", func(t *testing.T) {
		t.Parallel()

		held, _ := pipeStream()
		source := &fakeSource{list: newPodList("100")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			if call == 1 {
				return respOf(framesStream(
					frame("ADDED", "a", "101"),
					frame("MODIFIED", "a", "102"),
					frame("DELETED", "a", "103"),
					frame("BOOKMARK", "a", "999"),
				)), nil
			}

			return respOf(held), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())

		connected := waitEvent(t, events)
		assert.Equal(t, okapi.EventResponse, connected.Type)
		assert.Equal(t, 200, connected.StatusCode)

		created := waitEvent(t, events)
		assert.Equal(t, okapi.EventCreated, created.Type)
		assert.Equal(t, "a", created.Object.Name())

		updated := waitEvent(t, events)
		assert.Equal(t, okapi.EventUpdated, updated.Type)

		deleted := waitEvent(t, events)
		assert.Equal(t, okapi.EventDeleted, deleted.Type)

		unknown := waitEvent(t, events)
		assert.Equal(t, okapi.EventError, unknown.Type)
		require.Error(t, unknown.Err)
		assert.Contains(t, unknown.Err.Error(), "BOOKMARK")
		assert.NotEmpty(t, unknown.Raw)

		// The stream then ends cleanly; the session reconnects on its own.
		reconnected := waitEvent(t, events)
		assert.Equal(t, okapi.EventResponse, reconnected.Type)

		// Unrecognized types never advance the version cursor.
		assert.Equal(t, "103", session.ResourceVersion())

		session.Stop()
		waitClosed(t, events)
	})

	t.Run("modified event round-trips object and version", func(t *testing.T) {
		t.Parallel()

		held, writer := pipeStream()
		source := &fakeSource{list: newPodList("4")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			return respOf(held), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())
		waitEvent(t, events) // response

		_, err := writer.Write([]byte(frame("MODIFIED", "a", "5")))
		require.NoError(t, err)

		updated := waitEvent(t, events)
		assert.Equal(t, okapi.EventUpdated, updated.Type)
		assert.Equal(t, "a", updated.Object.Name())
		assert.Equal(t, "5", updated.Object.ResourceVersion())
		assert.Equal(t, "5", session.ResourceVersion())

		assertNoEvent(t, events)
		session.Stop()
	})

	t.Run("malformed frame stays buffered without erroring", func(t *testing.T) {
		t.Parallel()

		held, writer := pipeStream()
		source := &fakeSource{list: newPodList("4")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			return respOf(held), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())
		waitEvent(t, events) // response

		full := frame("MODIFIED", "a", "5")
		half := len(full) / 2

		_, err := writer.Write([]byte(full[:half]))
		require.NoError(t, err)

		// Half a frame is not an error; the session stays connected and waits.
		assertNoEvent(t, events)
		assert.Equal(t, StateConnected, session.State())

		_, err = writer.Write([]byte(full[half:]))
		require.NoError(t, err)

		updated := waitEvent(t, events)
		assert.Equal(t, okapi.EventUpdated, updated.Type)
		assert.Equal(t, "5", session.ResourceVersion())

		session.Stop()
	})

	t.Run("oversized frame surfaces an error event", func(t *testing.T) {
		t.Parallel()

		held, writer := pipeStream()
		source := &fakeSource{list: newPodList("4")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			return respOf(held), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())
		waitEvent(t, events) // response

		go func() {
			// A value that can never complete within the frame bound.
			payload := []byte(`{"spec":"` + strings.Repeat("a", constants.MaxFrameBytes+64))
			_, _ = writer.Write(payload)
		}()

		failure := waitEvent(t, events)
		assert.Equal(t, okapi.EventError, failure.Type)
		require.ErrorIs(t, failure.Err, okapi.ErrFrameTooLarge)

		session.Stop()
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestSession_Reconnect(t *testing.T) {
	t.Parallel()
	t.Run("resumes at the advanced version after a clean end", func(t *testing.T) {
		t.Parallel()

		held, _ := pipeStream()
		source := &fakeSource{list: newPodList("100")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			if call == 1 {
				return respOf(framesStream(frame("ADDED", "a", "200"))), nil
			}

			return respOf(held), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())

		waitEvent(t, events) // response
		waitEvent(t, events) // create
		waitEvent(t, events) // response after reconnect

		assert.Equal(t, []string{"100", "200"}, source.recordedVersions())

		session.Stop()
	})

	t.Run("timeouts consume the retry budget", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			return respOf(failingStream(timeoutError{})), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start(okapi.WithRetryLimit(2)))

		// Initial connect plus exactly two reconnects, then the error.
		waitEvent(t, events)
		waitEvent(t, events)
		waitEvent(t, events)

		failure := waitEvent(t, events)
		assert.Equal(t, okapi.EventError, failure.Type)
		require.Error(t, failure.Err)
		assert.Equal(t, 3, source.connects())

		assertNoEvent(t, events)
		assert.Equal(t, 3, source.connects())

		session.Stop()
	})

	t.Run("non-timeout errors do not reconnect", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			return respOf(failingStream(errConnReset)), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())

		waitEvent(t, events) // response

		failure := waitEvent(t, events)
		assert.Equal(t, okapi.EventError, failure.Type)
		require.ErrorIs(t, failure.Err, errConnReset)
		assert.Equal(t, 1, source.connects())

		session.Stop()
	})
}

func TestSession_StartIdempotence(t *testing.T) {
	t.Parallel()
	t.Run("second start without force is a no-op", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			held, _ := pipeStream()

			return respOf(held), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())
		waitEvent(t, events) // response

		require.NoError(t, session.Start())
		assertNoEvent(t, events)
		assert.Equal(t, 1, source.connects())

		session.Stop()
	})

	t.Run("force opens an additional connection", func(t *testing.T) {
		t.Parallel()

		source := &fakeSource{list: newPodList("100")}
		source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
			held, _ := pipeStream()

			return respOf(held), nil
		}

		session := NewSession(source, nil, "pods")
		require.NoError(t, session.TakeSnapshot(context.Background()))

		events := session.Events()
		require.NoError(t, session.Start())
		waitEvent(t, events) // response

		require.NoError(t, session.Start(okapi.WithForce()))
		forced := waitEvent(t, events)
		assert.Equal(t, okapi.EventResponse, forced.Type)
		assert.Equal(t, 2, source.connects())

		session.Stop()
	})
}

func TestSession_Stop(t *testing.T) {
	t.Parallel()

	held, _ := pipeStream()
	source := &fakeSource{list: newPodList("100")}
	source.connectFn = func(call int, resourceVersion string) (*http.StreamResponse, error) {
		return respOf(held), nil
	}

	session := NewSession(source, nil, "pods")
	require.NoError(t, session.TakeSnapshot(context.Background()))

	events := session.Events()
	require.NoError(t, session.Start())
	waitEvent(t, events) // response

	session.Stop()
	session.Stop() // idempotent

	waitClosed(t, events)
	assert.Equal(t, StateStopped, session.State())

	require.Eventually(t, func() bool {
		return held.closed.Load()
	}, 2*time.Second, 10*time.Millisecond, "connection should be closed on stop")
}
