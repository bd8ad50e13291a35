package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"npcgateway/internal/app/broadcast"
	"npcgateway/internal/app/decide"
	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/scene"
	"npcgateway/internal/logging"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in       chan []byte
	closed   chan struct{}
	once     sync.Once
	writeErr error
	// block, when set, holds writes until it or the conn is closed
	block chan struct{}

	mu  sync.Mutex
	out [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case m, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return m, nil
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	if c.block != nil {
		select {
		case <-c.block:
		case <-c.closed:
			return ErrClosed
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(msg string) { c.in <- []byte(msg) }

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.out...)
}

func (c *fakeConn) waitWritten(t *testing.T, n int) [][]byte {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.written()) >= n }, 2*time.Second, 5*time.Millisecond,
		"expected %d messages written", n)
	return c.written()
}

var idLine = regexp.MustCompile(`- ID: (\S+)`)

// echoBackend answers with a decision whose text is the requester id found in the prompt.
type echoBackend struct {
	delay func() time.Duration
}

func (b echoBackend) Generate(_ context.Context, req ports.BackendRequest) (ports.BackendReply, error) {
	if b.delay != nil {
		time.Sleep(b.delay())
	}
	id := "?"
	if m := idLine.FindStringSubmatch(req.SystemPrompt); m != nil {
		id = m[1]
	}
	return ports.BackendReply{Text: fmt.Sprintf(`<think>deciding</think>{"thought":"near well","text":%q,"actions":[{"type":"interact"}]}`, id)}, nil
}

type recordingArchive struct {
	mu      sync.Mutex
	records []ports.DecisionRecord
}

func (a *recordingArchive) Submit(_ context.Context, r ports.DecisionRecord) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
	return true
}

func (a *recordingArchive) all() []ports.DecisionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ports.DecisionRecord(nil), a.records...)
}

type kit struct {
	dispatcher *Dispatcher
	archive    *recordingArchive
	registry   *broadcast.Registry
	log        *logging.TestLogger
}

func newKit(backend ports.InferenceBackend) kit {
	log := logging.NewTestLogger()
	archive := &recordingArchive{}
	registry := broadcast.NewRegistry(nil, log.Logger)
	return kit{
		dispatcher: &Dispatcher{
			Decider: decide.UseCase{
				Summarizer: scene.Summarizer{},
				Backend:    backend,
				Prompts:    decide.NewPromptBuilder(),
				Timeout:    time.Second,
				Logger:     log.Logger,
				Now:        func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
			},
			Archive:   archive,
			Observers: registry,
			Logger:    log.Logger,
		},
		archive:  archive,
		registry: registry,
		log:      log,
	}
}

func decodeMessage(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}
