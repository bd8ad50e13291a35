package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"npcgateway/internal/adapter/metrics/inmemory"
	"npcgateway/internal/app/broadcast"
	"npcgateway/internal/app/decide"
	"npcgateway/internal/app/history"
	"npcgateway/internal/app/ports"
	"npcgateway/internal/app/relay"
	"npcgateway/internal/domain/decision"
	"npcgateway/internal/domain/scene"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records []ports.DecisionRecord
	err     error
}

func (s *fakeStore) Append(_ context.Context, r ports.DecisionRecord) (string, error) {
	s.records = append([]ports.DecisionRecord{r}, s.records...)
	return fmt.Sprint(len(s.records)), nil
}

func (s *fakeStore) QueryRecent(_ context.Context, limit int) ([]ports.DecisionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

type interactBackend struct{}

func (interactBackend) Generate(context.Context, ports.BackendRequest) (ports.BackendReply, error) {
	return ports.BackendReply{Text: `{"thought":"t","text":"hi","actions":[{"type":"interact"}]}`}, nil
}

func newHistoryRequest(uri string) *app.RequestContext {
	ctx := &app.RequestContext{}
	ctx.Request.SetRequestURI(uri)
	return ctx
}

func TestHistory_Envelope(t *testing.T) {
	store := &fakeStore{records: []ports.DecisionRecord{
		{ID: "65f0c0ffee", RequesterID: "npc1", Status: decision.StatusOK, Content: []byte(`{"actions":[{"type":"interact"}]}`)},
		{ID: "65f0c0ffed", RequesterID: "npc2", Status: decision.StatusError, Content: []byte(`{"error":"backend-error","level":"error"}`)},
	}}
	h := Handler{HistoryUC: history.UseCase{Store: store}}
	ctx := newHistoryRequest("/history?limit=10")

	h.history(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body struct {
		Code   int                          `json:"code"`
		Status string                       `json:"status"`
		Data   map[string][]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, 200, body.Code)
	assert.Equal(t, "success", body.Status)
	require.Len(t, body.Data["npc1"], 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(body.Data["npc1"][0], &entry))
	assert.Equal(t, "65f0c0ffee", entry["_id"])
	assert.Equal(t, "npc1", entry["npc_id"])
}

func TestHistory_NewestRequesterGroupFirst(t *testing.T) {
	store := &fakeStore{records: []ports.DecisionRecord{
		{ID: "3", RequesterID: "zed", Status: decision.StatusOK, Content: []byte(`{}`)},
		{ID: "2", RequesterID: "amy", Status: decision.StatusOK, Content: []byte(`{}`)},
	}}
	h := Handler{HistoryUC: history.UseCase{Store: store}}
	ctx := newHistoryRequest("/history")

	h.history(context.Background(), ctx)

	body := string(ctx.Response.Body())
	if zed, amy := strings.Index(body, `"zed":[`), strings.Index(body, `"amy":[`); zed < 0 || amy < 0 || zed > amy {
		t.Fatalf("group order mismatch: got=%s", body)
	}
}

func TestHistory_InvalidLimit(t *testing.T) {
	h := Handler{HistoryUC: history.UseCase{Store: &fakeStore{}}}

	for _, uri := range []string{"/history?limit=abc", "/history?limit=-5"} {
		ctx := newHistoryRequest(uri)
		h.history(context.Background(), ctx)
		if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
			t.Fatalf("%s: status mismatch: got=%d want=%d", uri, got, want)
		}
	}
}

func TestHistory_StoreUnavailable(t *testing.T) {
	h := Handler{HistoryUC: history.UseCase{Store: &fakeStore{err: ports.ErrUnavailable}}}
	ctx := newHistoryRequest("/history")

	h.history(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusServiceUnavailable; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "store_unavailable", body["error"]["code"])
}

func TestKPI_NotConfigured(t *testing.T) {
	ctx := &app.RequestContext{}
	Handler{}.kpi(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestKPI_Snapshot(t *testing.T) {
	rec := inmemory.NewRecorder()
	rec.RecordOutcome(decision.StatusOK, decision.ReasonNone)
	ctx := &app.RequestContext{}

	Handler{KPI: rec}.kpi(context.Background(), ctx)

	var snap inmemory.Snapshot
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &snap))
	assert.Equal(t, uint64(1), snap.DecisionOK)
}

func TestHealthz(t *testing.T) {
	ctx := &app.RequestContext{}
	Handler{}.healthz(context.Background(), ctx)
	assert.Equal(t, consts.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(ctx.Response.Body()))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestWebsocket_ProducerReplyIsBroadcast(t *testing.T) {
	registry := broadcast.NewRegistry(nil, nil)
	store := &fakeStore{}
	h := Handler{
		Relay: &relay.Dispatcher{
			Decider: decide.UseCase{
				Summarizer: scene.Summarizer{},
				Backend:    interactBackend{},
				Prompts:    decide.NewPromptBuilder(),
				Timeout:    time.Second,
			},
			Observers: registry,
		},
		HistoryUC: history.UseCase{Store: store},
	}

	addr := freeAddr(t)
	s := server.Default(server.WithHostPorts(addr))
	s.NoHijackConnPool = true
	h.RegisterRoutes(s)
	go func() { _ = s.Run() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	var observer *gws.Conn
	require.Eventually(t, func() bool {
		c, _, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws/web", nil)
		if err != nil {
			return false
		}
		observer = c
		return true
	}, 3*time.Second, 20*time.Millisecond)
	defer observer.Close()
	require.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, 10*time.Millisecond)

	producer, _, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.WriteMessage(gws.TextMessage, []byte(`{"requesterId":"npc1","requesterName":"Mira","worldState":{}}`)))

	require.NoError(t, producer.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, reply, err := producer.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, observer.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, copied, err := observer.ReadMessage()
	require.NoError(t, err)

	assert.Equal(t, reply, copied)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(reply, &msg))
	assert.Equal(t, "ai_decision", msg["type"])
	assert.Equal(t, "npc1", msg["npcId"])

	require.NoError(t, producer.WriteMessage(gws.TextMessage, []byte(`nope`)))
	_, errReply, err := producer.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(errReply), `"type":"error"`)
}
