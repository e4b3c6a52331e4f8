// Package server assembles the ground station from its parts: the
// coverage planner, the shared cache, the drone signalling endpoint,
// and the command bridge.
package server

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/skyrelay/groundcore/cache"
	"github.com/skyrelay/groundcore/config"
	"github.com/skyrelay/groundcore/logging"
	"github.com/skyrelay/groundcore/planner"
	"github.com/skyrelay/groundcore/signal"
)

// cacheConnectTimeout bounds the startup reachability check against the
// shared cache.
const cacheConnectTimeout = 5 * time.Second

// Option configures a Station beyond what its config file carries.
type Option func(*Station)

// WithStore substitutes the shared cache client.
func WithStore(store cache.Store) Option {
	return func(s *Station) { s.store = store }
}

// WithSource substitutes the command subscription.
func WithSource(source signal.Source) Option {
	return func(s *Station) { s.source = source }
}

// WithClock substitutes the wall clock used for telemetry timestamps
// and cache TTLs.
func WithClock(clk clock.Clock) Option {
	return func(s *Station) { s.clk = clk }
}

// WithFrameSink forwards RTP packets from drone media tracks to sink.
func WithFrameSink(sink signal.FrameSink) Option {
	return func(s *Station) { s.sink = sink }
}

// Station supervises the ground side of a drone fleet. It owns the
// lifecycle of every component; see Start for the bring-up order.
type Station struct {
	cfg    *config.Config
	logger logging.Logger
	clk    clock.Clock

	store  cache.Store
	source signal.Source
	sink   signal.FrameSink

	assignment planner.Assignment
	signal     *signal.Server
	bridge     *signal.Bridge
	status     *statusServer

	mu      sync.Mutex
	started bool
	closed  bool
}

// New wires a Station from a validated config. Nothing runs until Start.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) *Station {
	s := &Station{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start brings the components up in dependency order: the coverage plan
// is computed first, the cache must then prove reachable, and only after
// that do the signalling endpoint and command fanout open for traffic.
// Any failure leaves the Station stopped; Close releases whatever was
// already running.
func (s *Station) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("station already started")
	}
	if s.closed {
		return errors.New("station already closed")
	}

	trajectories, err := config.ReadTrajectories(s.cfg.TrajectoriesFile)
	if err != nil {
		return err
	}
	assignment, err := planner.Plan(planner.Request{
		Trajectories: trajectories,
		Origin:       s.cfg.OriginCoordinate(),
		DroneCount:   s.cfg.DroneCount,
		Overlap:      s.cfg.OverlapValue(),
		FOVDegrees:   s.cfg.FOVDegrees,
		AltitudeMinM: s.cfg.AltitudeMinM,
		AltitudeMaxM: s.cfg.AltitudeMaxM,
	}, s.logger.Sublogger("planner"))
	if err != nil {
		return errors.Wrap(err, "planning coverage")
	}
	s.assignment = assignment

	if s.store == nil {
		s.store = cache.NewRedisStore(s.cfg.CacheConfig(), s.logger.Sublogger("cache"))
	}
	pingCtx, pingCancel := context.WithTimeout(ctx, cacheConnectTimeout)
	err = s.store.Ping(pingCtx)
	pingCancel()
	if err != nil {
		return err
	}

	if s.source == nil {
		s.source = cache.NewSubscriber(
			s.cfg.CacheConfig(), s.cfg.CommandChannel, s.logger.Sublogger("commands"))
	}

	s.signal = signal.NewServer(assignment, s.store, s.logger.Sublogger("signal"), signal.Options{
		ListenAddress: s.cfg.ListenAddress(),
		PositionTTL:   s.cfg.PositionTTL(),
		Clock:         s.clk,
		Sink:          s.sink,
	})
	if err := s.signal.Start(ctx); err != nil {
		return err
	}

	s.bridge = signal.NewBridge(s.source, s.signal, s.logger.Sublogger("bridge"))
	if err := s.bridge.Start(); err != nil {
		return err
	}

	if s.cfg.StatusAddr != "" {
		s.status = newStatusServer(s.signal, s.clk, s.logger.Sublogger("status"))
		if err := s.status.Start(ctx, s.cfg.StatusAddr); err != nil {
			return err
		}
	}

	s.started = true
	s.logger.Infow("ground station ready",
		"address", s.signal.Address(),
		"targets", len(assignment.Targets),
		"altitude_m", assignment.AltitudeM,
	)
	return nil
}

// SignalAddress returns the bound signalling address, or empty before
// Start.
func (s *Station) SignalAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signal == nil {
		return ""
	}
	return s.signal.Address()
}

// StatusAddress returns the bound status address, or empty when status
// serving is off.
func (s *Station) StatusAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return ""
	}
	return s.status.Address()
}

// Assignment returns the coverage plan computed at Start.
func (s *Station) Assignment() planner.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignment
}

// Close stops the components in reverse start order. It is safe to call
// more than once and after a failed Start.
func (s *Station) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs error
	if s.status != nil {
		errs = multierr.Combine(errs, s.status.Stop())
	}
	if s.bridge != nil {
		errs = multierr.Combine(errs, s.bridge.Stop())
	}
	if s.signal != nil {
		errs = multierr.Combine(errs, s.signal.Stop())
	}
	if closer, ok := s.source.(io.Closer); ok {
		errs = multierr.Combine(errs, closer.Close())
	}
	if s.store != nil {
		errs = multierr.Combine(errs, s.store.Close())
	}
	if s.started {
		s.logger.Info("ground station stopped")
	}
	return errs
}
