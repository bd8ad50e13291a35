package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	wsadapter "npcgateway/internal/adapter/ws"
	"npcgateway/internal/app/history"
	"npcgateway/internal/app/ports"
	"npcgateway/internal/app/relay"
	"npcgateway/internal/logging"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	Relay     *relay.Dispatcher
	HistoryUC history.UseCase
	KPI       kpiSnapshotProvider
	Metrics   http.Handler
	WS        wsadapter.Options
	Logger    *logging.Logger
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware())

	s.GET("/ws", h.producer)
	s.GET("/ws/web", h.observer)
	s.GET("/history", h.history)

	s.GET("/healthz", h.healthz)
	s.GET("/ops/kpi", h.kpi)
	if h.Metrics != nil {
		s.GET("/metrics", adaptor.HertzHandler(h.Metrics))
	}
}

// Producers and observers are browsers or game servers on arbitrary origins.
var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(*app.RequestContext) bool { return true },
}

func (h Handler) producer(c context.Context, ctx *app.RequestContext) {
	h.upgrade(c, ctx, h.Relay.ServeProducer)
}

func (h Handler) observer(c context.Context, ctx *app.RequestContext) {
	h.upgrade(c, ctx, h.Relay.ServeObserver)
}

func (h Handler) upgrade(c context.Context, ctx *app.RequestContext, serve func(context.Context, relay.MessageConn)) {
	err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		serve(c, wsadapter.Wrap(conn, h.WS))
	})
	if err != nil {
		h.log().Warn(c, "websocket upgrade failed", zap.String("path", string(ctx.Path())), zap.Error(err))
	}
}

type historyResponse struct {
	Code   int              `json:"code"`
	Status string           `json:"status"`
	Data   history.Response `json:"data"`
}

func (h Handler) history(c context.Context, ctx *app.RequestContext) {
	limit := 0
	if raw := strings.TrimSpace(string(ctx.Query("limit"))); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorBody(ctx, consts.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = n
	}

	resp, err := h.HistoryUC.Execute(c, history.Request{Limit: limit})
	if err != nil {
		h.log().Error(c, "history query failed", zap.Error(err))
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, historyResponse{Code: consts.StatusOK, Status: "success", Data: resp})
}

func (h Handler) healthz(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func (h Handler) log() *logging.Logger {
	if h.Logger == nil {
		return logging.Nop()
	}
	return h.Logger
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, history.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrUnavailable):
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
