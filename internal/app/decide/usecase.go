package decide

import (
	"context"
	"errors"
	"fmt"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/decision"
	"npcgateway/internal/domain/scene"
	"npcgateway/internal/logging"

	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Second

// UseCase runs one decision cycle: summarize, prompt, call the backend, extract.
// Execute never fails; every problem ends up as a Failure outcome.
type UseCase struct {
	Summarizer ports.Summarizer
	Backend    ports.InferenceBackend
	Prompts    PromptBuilder
	Sampling   ports.Sampling
	Timeout    time.Duration
	Metrics    ports.DecisionMetrics
	Logger     *logging.Logger
	Now        func() time.Time
}

func (u UseCase) Execute(ctx context.Context, req Request) Response {
	nowFn := u.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	log := u.Logger
	if log == nil {
		log = logging.Nop()
	}

	report := u.summarize(ctx, log, req)
	prompt := u.Prompts.Build(req, report)

	outcome := u.generate(ctx, log, ports.BackendRequest{
		SystemPrompt: prompt.System,
		SceneReport:  report,
		UserPrompt:   prompt.User,
		Prompt:       prompt.Full(),
		Sampling:     u.Sampling.Merge(req.Sampling),
	})

	if u.Metrics != nil {
		u.Metrics.RecordOutcome(outcome.Status(), outcome.Reason)
	}
	return Response{Outcome: outcome, SceneReport: report, DecidedAt: nowFn()}
}

func (u UseCase) summarize(ctx context.Context, log *logging.Logger, req Request) (report string) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn(ctx, "summarizer panicked, using placeholder scene", zap.Any("panic", p))
			report = scene.Unavailable
		}
	}()
	if u.Summarizer == nil {
		return scene.Unavailable
	}
	out, err := u.Summarizer.Summarize(req.WorldState)
	if err != nil {
		log.Warn(ctx, "summarizer failed, using placeholder scene", zap.Error(err))
		return scene.Unavailable
	}
	return out
}

func (u UseCase) generate(ctx context.Context, log *logging.Logger, breq ports.BackendRequest) decision.Outcome {
	if u.Backend == nil {
		return decision.Failed(decision.ReasonBackend, "no backend configured", "")
	}
	timeout := u.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	reply, err := u.call(callCtx, breq)
	if u.Metrics != nil {
		u.Metrics.RecordBackendLatency(time.Since(started))
	}
	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			detail = fmt.Sprintf("backend timed out after %s", timeout)
		}
		log.Error(ctx, "backend call failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return decision.Failed(decision.ReasonBackend, detail, "")
	}

	res := decision.Extract(reply.Text)
	if !res.OK() {
		log.Warn(ctx, "backend output unparseable", zap.Error(res.Failure.Cause), zap.Int("raw_len", len(reply.Text)))
		return decision.Failed(decision.ReasonUnparseable, res.Failure.Cause.Error(), res.Failure.Raw)
	}
	if res.Repaired {
		log.Debug(ctx, "backend output repaired")
	}
	return decision.Succeeded(res.Decision, res.Reasoning)
}

type backendResult struct {
	reply ports.BackendReply
	err   error
}

// call bounds the backend by ctx even when the implementation ignores cancellation.
// A late reply is dropped.
func (u UseCase) call(ctx context.Context, breq ports.BackendRequest) (ports.BackendReply, error) {
	done := make(chan backendResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- backendResult{err: fmt.Errorf("%w: backend panic: %v", ports.ErrBackend, p)}
			}
		}()
		reply, err := u.Backend.Generate(ctx, breq)
		done <- backendResult{reply: reply, err: err}
	}()
	select {
	case r := <-done:
		return r.reply, r.err
	case <-ctx.Done():
		return ports.BackendReply{}, ctx.Err()
	}
}
