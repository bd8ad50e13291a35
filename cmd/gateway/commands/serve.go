package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	httpadapter "npcgateway/internal/adapter/http"
	"npcgateway/internal/adapter/metrics"
	"npcgateway/internal/adapter/metrics/inmemory"
	"npcgateway/internal/adapter/metrics/prom"
	wsadapter "npcgateway/internal/adapter/ws"
	"npcgateway/internal/app/archive"
	"npcgateway/internal/app/broadcast"
	"npcgateway/internal/app/decide"
	"npcgateway/internal/app/history"
	"npcgateway/internal/app/relay"
	"npcgateway/internal/config"
	"npcgateway/internal/domain/scene"
	"npcgateway/internal/logging"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket gateway and history API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg.Backend)
	if err != nil {
		_ = closeStore(context.Background())
		return err
	}

	kpi := inmemory.NewRecorder()
	promRec := prom.NewRecorder()
	recorder := metrics.Tee{kpi, promRec}

	worker := archive.NewWorker(store, archive.Config{
		Workers:      cfg.Archive.Workers,
		QueueSize:    cfg.Archive.QueueSize,
		WriteTimeout: cfg.Store.WriteTimeout,
	}, recorder, log)
	worker.Start()

	h := httpadapter.Handler{
		Relay: &relay.Dispatcher{
			Decider: decide.UseCase{
				Summarizer: scene.Summarizer{},
				Backend:    backend,
				Prompts:    decide.NewPromptBuilder(),
				Sampling:   cfg.Backend.Sampling(),
				Timeout:    cfg.Backend.Timeout,
				Metrics:    recorder,
				Logger:     log.Named("decide"),
			},
			Archive:       worker,
			Observers:     broadcast.NewRegistry(recorder, log),
			Logger:        log.Named("relay"),
			ObserverQueue: cfg.Server.ObserverQueue,
		},
		HistoryUC: history.UseCase{Store: store, DefaultLimit: cfg.History.Limit, MaxLimit: cfg.History.MaxLimit},
		KPI:       kpi,
		Metrics:   promRec.Handler(),
		WS:        wsadapter.Options{WriteWait: cfg.Server.WriteWait, ReadLimit: cfg.Server.ReadLimit},
		Logger:    log.Named("http"),
	}

	s := server.Default(server.WithHostPorts(cfg.Server.Addr))
	s.NoHijackConnPool = true
	h.RegisterRoutes(s)

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run() }()
	log.Info(ctx, "gateway listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Backend.Driver),
		zap.String("store", cfg.Store.Driver))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
	case serveErr = <-runErr:
		if serveErr != nil {
			serveErr = fmt.Errorf("http server: %w", serveErr)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	var errs []error
	if err := s.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := worker.Stop(sctx); err != nil {
		errs = append(errs, fmt.Errorf("archive drain: %w", err))
	}
	if err := closeStore(sctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := errors.Join(append([]error{serveErr}, errs...)...); err != nil {
		log.Error(context.Background(), "shutdown incomplete", zap.Error(err))
		return err
	}
	log.Info(context.Background(), "gateway stopped")
	return nil
}
