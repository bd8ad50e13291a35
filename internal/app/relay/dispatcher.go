// Package relay drives producer and observer connections: each producer message
// becomes one decision cycle whose result is replied, archived and broadcast.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"npcgateway/internal/app/broadcast"
	"npcgateway/internal/app/decide"
	"npcgateway/internal/app/ports"
	"npcgateway/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultObserverQueue = 32

// MessageConn is one text-message socket. Implementations must allow a write to
// run concurrently with a blocked read.
type MessageConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

type Decider interface {
	Execute(ctx context.Context, req decide.Request) decide.Response
}

type Archiver interface {
	Submit(ctx context.Context, record ports.DecisionRecord) bool
}

type Dispatcher struct {
	Decider   Decider
	Archive   Archiver
	Observers *broadcast.Registry
	Logger    *logging.Logger
	NewID     func() string
	// ObserverQueue bounds the messages buffered per observer before it is
	// dropped as too slow.
	ObserverQueue int
}

func (d *Dispatcher) log() *logging.Logger {
	if d.Logger == nil {
		return logging.Nop()
	}
	return d.Logger
}

func (d *Dispatcher) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

// ServeProducer runs the producer loop until the connection fails or closes.
// Cycles on one connection are sequential.
func (d *Dispatcher) ServeProducer(ctx context.Context, conn MessageConn) {
	defer conn.Close()
	connID := d.newID()
	log := d.log().With(zap.String("conn_id", connID), zap.String("role", "producer"))
	log.Info(ctx, "producer connected")

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			logDisconnect(ctx, log, "producer disconnected", err)
			return
		}
		if !d.cycle(ctx, log, conn, data) {
			return
		}
	}
}

// cycle handles one message and reports whether the connection is still usable.
func (d *Dispatcher) cycle(ctx context.Context, log *logging.Logger, conn MessageConn, data []byte) bool {
	// the decision runs to completion even if the producer goes away meanwhile
	cctx := logging.WithRequestID(context.WithoutCancel(ctx), d.newID())

	req, err := DecodeRequest(data)
	if err != nil {
		log.Warn(cctx, "rejecting producer message", zap.Error(err), zap.Int("bytes", len(data)))
		if werr := conn.WriteMessage(encodeError(err)); werr != nil {
			logDisconnect(cctx, log, "producer disconnected", werr)
			return false
		}
		return true
	}
	cctx = logging.WithNPC(cctx, req.RequesterID)
	log.Info(cctx, "decision requested")

	resp := d.Decider.Execute(cctx, req)
	payload, err := json.Marshal(NewMessage(req, resp))
	if err != nil {
		log.Error(cctx, "encode decision message", zap.Error(err))
		return conn.WriteMessage(encodeError(err)) == nil
	}

	alive := true
	if err := conn.WriteMessage(payload); err != nil {
		logDisconnect(cctx, log, "reply undeliverable, producer gone", err)
		alive = false
	}

	if d.Archive != nil {
		d.Archive.Submit(cctx, ports.DecisionRecord{
			RequesterID:   req.RequesterID,
			RequesterName: req.RequesterName,
			Timestamp:     resp.DecidedAt,
			SceneReport:   resp.SceneReport,
			Status:        resp.Outcome.Status(),
			Content:       resp.Outcome.Content(),
		})
	}
	if d.Observers != nil {
		res := d.Observers.Broadcast(cctx, payload)
		log.Debug(cctx, "decision broadcast", zap.Int("delivered", res.Delivered), zap.Int("failed", res.Failed))
	}
	return alive
}

// ServeObserver registers conn for broadcasts and discards anything it sends
// until it disconnects. Broadcasts reach the socket through a per-observer queue
// drained here, so a slow observer never holds up a producer.
func (d *Dispatcher) ServeObserver(ctx context.Context, conn MessageConn) {
	o := newObserver(d.newID(), conn, d.observerQueue())
	log := d.log().With(zap.String("conn_id", o.id), zap.String("role", "observer"))
	if d.Observers != nil {
		d.Observers.Register(o)
	}
	log.Info(ctx, "observer connected")

	var g errgroup.Group
	g.Go(func() error {
		defer o.Close()
		for {
			if _, err := conn.ReadMessage(); err != nil {
				return err
			}
		}
	})
	g.Go(func() error {
		defer o.Close()
		return o.drain(ctx)
	})
	err := g.Wait()

	if d.Observers != nil {
		d.Observers.Unregister(o)
	}
	if err == nil {
		err = ErrClosed
	}
	logDisconnect(ctx, log, "observer disconnected", err)
}

func (d *Dispatcher) observerQueue() int {
	if d.ObserverQueue > 0 {
		return d.ObserverQueue
	}
	return DefaultObserverQueue
}

var errObserverBackedUp = errors.New("observer queue full")

type observer struct {
	id   string
	conn MessageConn
	out  chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newObserver(id string, conn MessageConn, queue int) *observer {
	return &observer{id: id, conn: conn, out: make(chan []byte, queue), done: make(chan struct{})}
}

func (o *observer) ID() string { return o.id }

// Send enqueues payload without waiting for the socket.
func (o *observer) Send(payload []byte) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.out <- payload:
		return nil
	default:
		return errObserverBackedUp
	}
}

func (o *observer) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.done)
		err = o.conn.Close()
	})
	return err
}

func (o *observer) drain(ctx context.Context) error {
	for {
		select {
		case <-o.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-o.out:
			if err := o.conn.WriteMessage(payload); err != nil {
				return err
			}
		}
	}
}

// ErrClosed is returned by MessageConn implementations on a clean close.
var ErrClosed = errors.New("connection closed")

func logDisconnect(ctx context.Context, log *logging.Logger, msg string, err error) {
	if errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) {
		log.Info(ctx, msg)
		return
	}
	log.Info(ctx, msg, zap.Error(err))
}
