package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/skyrelay/groundcore/logging"
	"github.com/skyrelay/groundcore/signal"
)

const statusStopTimeout = 5 * time.Second

// statusServer serves GET /healthz on its own listener so operational
// probes never touch the signalling port.
type statusServer struct {
	logger  logging.Logger
	signal  *signal.Server
	clk     clock.Clock
	started time.Time

	httpServer *http.Server
	listener   net.Listener

	activeBackgroundWorkers sync.WaitGroup
}

func newStatusServer(sig *signal.Server, clk clock.Clock, logger logging.Logger) *statusServer {
	if clk == nil {
		clk = clock.New()
	}
	return &statusServer{logger: logger, signal: sig, clk: clk}
}

func (s *statusServer) Start(ctx context.Context, address string) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", address)
	}
	s.listener = listener
	s.started = s.clk.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		if err := utils.FilterOutError(s.httpServer.Serve(listener), http.ErrServerClosed); err != nil {
			s.logger.Errorw("status serve failed", "error", err)
		}
	}, s.activeBackgroundWorkers.Done)

	s.logger.Infow("status endpoint listening", "address", listener.Addr().String())
	return nil
}

// Address returns the bound listener address, or empty before Start.
func (s *statusServer) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthBody struct {
	Status        string        `json:"status"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Signalling    signal.Status `json:"signalling"`
}

func (s *statusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{
		Status:        "ok",
		UptimeSeconds: s.clk.Now().Sub(s.started).Seconds(),
		Signalling:    s.signal.Status(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debugw("health encode failed", "error", err)
	}
}

func (s *statusServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), statusStopTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.activeBackgroundWorkers.Wait()
	return err
}
