package signal

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/skyrelay/groundcore/cache"
	"github.com/skyrelay/groundcore/logging"
	"github.com/skyrelay/groundcore/planner"
)

const (
	dispatchQueueSize = 64
	stopTimeout       = 5 * time.Second
)

// Options configures the signalling server.
type Options struct {
	// ListenAddress is the host:port the WebSocket endpoint binds to.
	ListenAddress string
	// PositionTTL is how long cached position reports live.
	PositionTTL time.Duration
	// ICEServers optionally lists STUN/TURN servers for peer connections.
	// Empty works on a flat network.
	ICEServers []webrtc.ICEServer
	// Sink optionally receives RTP packets from drone media tracks.
	Sink FrameSink
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Server accepts drone WebSocket connections on the root path and demuxes
// their frames into per-connection peer sessions. A single dispatch
// goroutine owns cross-session work such as bus command fanout.
type Server struct {
	logger logging.Logger
	store  cache.Store
	opts   Options

	targets []planner.FlyToTarget
	slots   *slotPool

	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	mu       sync.Mutex
	sessions map[string]*PeerSession
	order    []string
	started  bool
	stopped  bool

	tasks chan func()

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewServer wires a server around planner output and a cache. Connections
// claim target slots in arrival order.
func NewServer(assignment planner.Assignment, store cache.Store, logger logging.Logger, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Server{
		logger:  logger,
		store:   store,
		opts:    opts,
		targets: assignment.Targets,
		slots:   newSlotPool(len(assignment.Targets)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions:   map[string]*PeerSession{},
		tasks:      make(chan func(), dispatchQueueSize),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
}

// Start binds the listener and begins accepting upgrades.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	if s.stopped {
		s.mu.Unlock()
		return errors.New("server already stopped")
	}
	s.started = true
	s.mu.Unlock()

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.opts.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", s.opts.ListenAddress)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.activeBackgroundWorkers.Add(2)
	s.mu.Unlock()

	utils.ManagedGo(func() {
		if err := utils.FilterOutError(httpServer.Serve(listener), http.ErrServerClosed); err != nil {
			s.logger.Errorw("serve failed", "error", err)
		}
	}, s.activeBackgroundWorkers.Done)
	utils.ManagedGo(s.dispatchLoop, s.activeBackgroundWorkers.Done)

	s.logger.Infow("signalling server listening",
		"address", listener.Addr().String(), "slots", len(s.targets))
	return nil
}

// Address returns the bound listener address, or empty before Start.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SessionCount returns how many sessions are live.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) dispatchLoop() {
	for {
		select {
		case <-s.cancelCtx.Done():
			return
		case task := <-s.tasks:
			task()
		}
	}
}

// Submit queues work onto the dispatch goroutine in FIFO order. It reports
// false once the server is shutting down.
func (s *Server) Submit(task func()) bool {
	select {
	case <-s.cancelCtx.Done():
		return false
	case s.tasks <- task:
		return true
	}
}

// SubmitCommandPayload queues one raw bus payload; parsing and fanout both
// happen on the dispatch goroutine.
func (s *Server) SubmitCommandPayload(payload []byte) bool {
	return s.Submit(func() { s.dispatchCommand(payload) })
}

func (s *Server) dispatchCommand(payload []byte) {
	cmd, err := ParseCommandMessage(payload)
	if err != nil {
		s.logger.Warnw("dropping malformed command", "error", err)
		return
	}
	sess := s.resolveTarget(cmd.TargetDroneID)
	if sess == nil {
		s.logger.Warnw("dropping command for absent drone",
			"target_drone_id", cmd.TargetDroneID, "command", cmd.Command)
		return
	}
	if err := sess.writeJSON(commandFrame(cmd)); err != nil {
		s.logger.Warnw("command send failed; closing session",
			"session", sess.ID(), "error", err)
		sess.Close("command transport failed")
		return
	}
	s.logger.Debugw("command relayed",
		"session", sess.ID(), "target_drone_id", cmd.TargetDroneID, "command", cmd.Command)
}

// resolveTarget maps a 1-based drone id to a live session. A session that
// identified itself with the matching stable id wins; otherwise the id
// indexes connections in arrival order.
func (s *Server) resolveTarget(targetID int) *PeerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := strconv.Itoa(targetID)
	for _, id := range s.order {
		if sess := s.sessions[id]; sess != nil && sess.DroneID() == want {
			return sess
		}
	}
	idx := targetID - 1
	if idx < 0 || idx >= len(s.order) {
		return nil
	}
	return s.sessions[s.order[idx]]
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	slot, owned := s.slots.claim()
	var target *planner.FlyToTarget
	if slot >= 0 && slot < len(s.targets) {
		t := s.targets[slot]
		target = &t
	}

	sess := newPeerSession(s.cancelCtx, sessionParams{
		ID:          id,
		Conn:        conn,
		Store:       s.store,
		Clock:       s.opts.Clock,
		PositionTTL: s.opts.PositionTTL,
		Sink:        s.opts.Sink,
		ICEServers:  s.opts.ICEServers,
		Target:      target,
		Slot:        slot,
		OwnsSlot:    owned,
		Logger:      s.logger.Sublogger("session"),
		OnClose:     func() { s.unregister(id, slot, owned) },
	})

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		sess.Close(CloseReasonCleanup)
		return
	}
	s.sessions[id] = sess
	s.order = append(s.order, id)
	count := len(s.sessions)
	s.activeBackgroundWorkers.Add(1)
	s.mu.Unlock()

	s.logger.Infow("drone connected",
		"session", id, "remote", r.RemoteAddr, "slot", slot, "owned_slot", owned,
		"live_sessions", count)
	utils.ManagedGo(func() {
		// Greet with the assigned target so a drone can fly before asking.
		if err := sess.sendAssignedTarget(); err != nil {
			s.logger.Warnw("initial assignment send failed", "session", id, "error", err)
			sess.Close("assignment transport failed")
			return
		}
		sess.readLoop(s.cancelCtx)
	}, s.activeBackgroundWorkers.Done)
}

func (s *Server) unregister(id string, slot int, owned bool) {
	if owned {
		s.slots.release(slot)
	}
	s.mu.Lock()
	delete(s.sessions, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()
	s.logger.Infow("drone disconnected", "session", id, "live_sessions", count)
}

// SessionStatus describes one live session for status reporting.
type SessionStatus struct {
	ID           string                `json:"id"`
	DroneID      string                `json:"drone_id,omitempty"`
	State        string                `json:"state"`
	Slot         int                   `json:"slot"`
	LastPosition *cache.PositionRecord `json:"last_position,omitempty"`
}

// Status is a point-in-time snapshot of the server and its sessions.
type Status struct {
	Address      string          `json:"address"`
	SlotsPlanned int             `json:"slots_planned"`
	SlotsClaimed int             `json:"slots_claimed"`
	Sessions     []SessionStatus `json:"sessions"`
}

// Status reports live sessions in arrival order plus slot usage.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{
		SlotsPlanned: len(s.targets),
		SlotsClaimed: s.slots.claimedCount(),
		Sessions:     make([]SessionStatus, 0, len(s.order)),
	}
	if s.listener != nil {
		status.Address = s.listener.Addr().String()
	}
	for _, id := range s.order {
		sess := s.sessions[id]
		if sess == nil {
			continue
		}
		status.Sessions = append(status.Sessions, SessionStatus{
			ID:           sess.ID(),
			DroneID:      sess.DroneID(),
			State:        sess.State().String(),
			Slot:         sess.Slot(),
			LastPosition: sess.LastPosition(),
		})
	}
	return status
}

// Stop closes the listener, ends every session with a cleanup notice, and
// waits for background workers. Safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	httpServer := s.httpServer
	sessions := make([]*PeerSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var errs error
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		errs = multierr.Combine(errs, httpServer.Shutdown(ctx))
		cancel()
	}
	for _, sess := range sessions {
		sess.Close(CloseReasonCleanup)
	}
	s.cancelFunc()
	s.activeBackgroundWorkers.Wait()
	s.logger.Info("signalling server stopped")
	return errs
}
