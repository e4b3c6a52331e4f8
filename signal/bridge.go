package signal

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/skyrelay/groundcore/logging"
)

// Source delivers raw payloads published on a command channel. Listen
// blocks until the context ends or the source fails unrecoverably.
type Source interface {
	Listen(ctx context.Context, handler func(payload []byte)) error
}

// bridgeStopTimeout bounds how long Stop waits for the subscription
// goroutine to let go of a blocking receive.
const bridgeStopTimeout = 5 * time.Second

// Bridge pumps bus commands onto the server's dispatch goroutine. The
// subscription blocks on its own goroutine and never touches sessions
// directly.
type Bridge struct {
	source Source
	server *Server
	logger logging.Logger

	stopTimeout time.Duration

	mu      sync.Mutex
	started bool

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewBridge wires a command source to a server.
func NewBridge(source Source, server *Server, logger logging.Logger) *Bridge {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Bridge{
		source:      source,
		server:      server,
		logger:      logger,
		stopTimeout: bridgeStopTimeout,
		cancelCtx:   cancelCtx,
		cancelFunc:  cancelFunc,
	}
}

// Start launches the subscription goroutine.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.New("bridge already started")
	}
	if b.cancelCtx.Err() != nil {
		return errors.New("bridge already stopped")
	}
	b.started = true

	b.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		if err := b.source.Listen(b.cancelCtx, b.relay); err != nil && b.cancelCtx.Err() == nil {
			b.logger.Errorf("command subscription failed: %+v", err)
		}
	}, b.activeBackgroundWorkers.Done)
	b.logger.Info("command bridge started")
	return nil
}

func (b *Bridge) relay(payload []byte) {
	if !b.server.SubmitCommandPayload(payload) {
		b.logger.Debugw("server stopping; dropping command payload")
	}
}

// Stop signals the subscription goroutine and waits up to five seconds for
// it to exit. Safe to call more than once.
func (b *Bridge) Stop() error {
	b.cancelFunc()

	done := make(chan struct{})
	utils.PanicCapturingGo(func() {
		b.activeBackgroundWorkers.Wait()
		close(done)
	})
	select {
	case <-done:
		b.logger.Info("command bridge stopped")
		return nil
	case <-time.After(b.stopTimeout):
		return errors.New("command bridge did not stop in time")
	}
}
