package signal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/skyrelay/groundcore/cache"
	"github.com/skyrelay/groundcore/logging"
	"github.com/skyrelay/groundcore/planner"
)

// PeerState tracks how far one session's WebRTC handshake has progressed.
type PeerState int

const (
	// PeerIdle means no offer has arrived yet.
	PeerIdle PeerState = iota
	// PeerOfferReceived means the remote description is set.
	PeerOfferReceived
	// PeerAnswered means the answer was created and sent back.
	PeerAnswered
	// PeerConnected means the peer connection is established.
	PeerConnected
	// PeerClosed is terminal.
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerIdle:
		return "idle"
	case PeerOfferReceived:
		return "offer_received"
	case PeerAnswered:
		return "answered"
	case PeerConnected:
		return "connected"
	case PeerClosed:
		return "closed"
	}
	return "unknown"
}

// canTransition reports whether moving to next is legal. Handshake states
// advance one step at a time and any state may close.
func (s PeerState) canTransition(next PeerState) bool {
	if next == PeerClosed {
		return s != PeerClosed
	}
	switch s {
	case PeerIdle:
		return next == PeerOfferReceived
	case PeerOfferReceived:
		return next == PeerAnswered
	case PeerAnswered:
		return next == PeerConnected
	}
	return false
}

// CloseReasonCleanup is sent to every session when the server shuts down.
const CloseReasonCleanup = "server cleanup"

const sessionWriteWait = 10 * time.Second

var (
	errDuplicateOffer    = errors.New("remote description already set")
	errNoRemoteDesc      = errors.New("ice candidate before remote description")
	errSessionClosed     = errors.New("session closed")
	errAnswerInterrupted = errors.New("session closed while answering")
)

// PeerSession is one connected drone: its WebSocket transport, handshake
// state, assigned fly-to target, and any media tracks it publishes.
type PeerSession struct {
	id     string
	logger logging.Logger

	conn        *websocket.Conn
	store       cache.Store
	clk         clock.Clock
	positionTTL time.Duration
	sink        FrameSink
	iceServers  []webrtc.ICEServer

	target   *planner.FlyToTarget
	slot     int
	ownsSlot bool

	cancelCtx  context.Context
	cancelFunc func()

	mu           sync.Mutex
	state        PeerState
	pc           *webrtc.PeerConnection
	droneID      string
	lastPosition *cache.PositionRecord

	writeMu                 sync.Mutex
	closeOnce               sync.Once
	onClose                 func()
	activeBackgroundWorkers sync.WaitGroup
}

type sessionParams struct {
	ID          string
	Conn        *websocket.Conn
	Store       cache.Store
	Clock       clock.Clock
	PositionTTL time.Duration
	Sink        FrameSink
	ICEServers  []webrtc.ICEServer
	Target      *planner.FlyToTarget
	Slot        int
	OwnsSlot    bool
	Logger      logging.Logger
	OnClose     func()
}

func newPeerSession(ctx context.Context, p sessionParams) *PeerSession {
	cancelCtx, cancelFunc := context.WithCancel(ctx)
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &PeerSession{
		id:          p.ID,
		logger:      p.Logger,
		conn:        p.Conn,
		store:       p.Store,
		clk:         clk,
		positionTTL: p.PositionTTL,
		sink:        p.Sink,
		iceServers:  p.ICEServers,
		target:      p.Target,
		slot:        p.Slot,
		ownsSlot:    p.OwnsSlot,
		cancelCtx:   cancelCtx,
		cancelFunc:  cancelFunc,
		state:       PeerIdle,
		onClose:     p.OnClose,
	}
}

// ID returns the connection identifier assigned at upgrade time.
func (s *PeerSession) ID() string {
	return s.id
}

// DroneID returns the stable identifier a drone announced via Identify,
// or empty if it never did.
func (s *PeerSession) DroneID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droneID
}

// State returns the current handshake state.
func (s *PeerSession) State() PeerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Slot returns the planner slot this session was assigned at accept time.
func (s *PeerSession) Slot() int {
	return s.slot
}

// LastPosition returns the most recent position report, or nil.
func (s *PeerSession) LastPosition() *cache.PositionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPosition == nil {
		return nil
	}
	record := *s.lastPosition
	return &record
}

// readLoop consumes frames until the transport drops, then closes the
// session. It runs as the session's only reader.
func (s *PeerSession) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				s.logger.Warnw("session transport failed", "session", s.id, "error", err)
			} else {
				s.logger.Debugw("session transport closed", "session", s.id)
			}
			s.close(websocket.CloseNormalClosure, "transport closed")
			return
		}
		s.dispatch(ctx, data)
	}
}

// dispatch routes one inbound frame by msg_type. Malformed or unknown
// frames are logged and dropped; the session survives them.
func (s *PeerSession) dispatch(ctx context.Context, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warnw("dropping malformed frame", "session", s.id, "error", err)
		return
	}

	switch msg.MsgType {
	case TypeCoordinateRequest:
		if err := s.sendAssignedTarget(); err != nil {
			s.logger.Warnw("failed to send assignment", "session", s.id, "error", err)
			s.close(websocket.CloseInternalServerErr, "assignment transport failed")
		}
	case TypePosition:
		s.handlePosition(ctx, msg)
	case TypeDebug:
		s.logger.Infow("drone debug", "session", s.id, "msg", msg.Msg)
	case TypeOffer:
		if err := s.handleOffer(ctx, msg.SDP, msg.Type); err != nil {
			if errors.Is(err, errDuplicateOffer) {
				s.logger.Warnw("ignoring duplicate offer", "session", s.id, "state", s.State())
				return
			}
			s.logger.Warnw("offer handling failed", "session", s.id, "error", err)
			s.close(websocket.CloseProtocolError, "offer rejected")
		}
	case TypeCandidate:
		if err := s.handleCandidate(msg.Candidate); err != nil {
			s.logger.Warnw("dropping ice candidate", "session", s.id, "error", err)
		}
	case TypeAnswer:
		s.logger.Warnw("unexpected answer frame; this side answers", "session", s.id)
	case TypeIdentify:
		s.handleIdentify(msg.DroneID)
	case "":
		s.logger.Warnw("dropping frame without msg_type", "session", s.id)
	default:
		s.logger.Warnw("dropping frame with unknown msg_type", "session", s.id, "msg_type", msg.MsgType)
	}
}

// sendAssignedTarget pushes this session's fly-to target down the socket.
// Sessions beyond the planned drone count may have none; that is not an
// error.
func (s *PeerSession) sendAssignedTarget() error {
	if s.target == nil {
		s.logger.Debugw("no target assigned; skipping coordinate send", "session", s.id)
		return nil
	}
	return s.writeJSON(newAssignmentMessage(*s.target))
}

func (s *PeerSession) handleIdentify(droneID string) {
	if droneID == "" {
		s.logger.Warnw("identify frame without drone_id", "session", s.id)
		return
	}
	s.mu.Lock()
	s.droneID = droneID
	s.mu.Unlock()
	s.logger.Infow("drone identified", "session", s.id, "drone_id", droneID)
}

// handlePosition caches the report under the connection id. Store failures
// are logged and swallowed; telemetry must never take a session down.
func (s *PeerSession) handlePosition(ctx context.Context, msg clientMessage) {
	if msg.Latitude == nil || msg.Longitude == nil || msg.Altitude == nil {
		s.logger.Warnw("dropping position frame with missing fields", "session", s.id)
		return
	}
	timestamp := float64(s.clk.Now().UnixNano()) / float64(time.Second)
	if msg.Timestamp != nil {
		timestamp = *msg.Timestamp
	}
	record := cache.PositionRecord{
		ConnectionID: s.id,
		DroneID:      s.DroneID(),
		Latitude:     *msg.Latitude,
		Longitude:    *msg.Longitude,
		Altitude:     *msg.Altitude,
		Timestamp:    timestamp,
	}

	s.mu.Lock()
	s.lastPosition = &record
	s.mu.Unlock()

	data, err := record.Encode()
	if err != nil {
		s.logger.Errorw("failed to encode position", "session", s.id, "error", err)
		return
	}
	if err := s.store.Put(ctx, cache.PositionKey(s.id), data, s.positionTTL); err != nil {
		s.logger.Warnw("failed to cache position", "session", s.id, "error", err)
	}
}

// handleOffer sets the remote description, builds the answer, and sends it
// back once ICE gathering finishes. Only one offer per session is accepted.
func (s *PeerSession) handleOffer(ctx context.Context, sdp, sdpType string) error {
	if sdpType == "" {
		sdpType = "offer"
	}

	s.mu.Lock()
	if s.state != PeerIdle {
		state := s.state
		s.mu.Unlock()
		if state == PeerClosed {
			return errSessionClosed
		}
		return errDuplicateOffer
	}
	pc, err := s.newPeerConnection()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.pc = pc
	offer := webrtc.SessionDescription{Type: webrtc.NewSDPType(sdpType), SDP: sdp}
	if err := pc.SetRemoteDescription(offer); err != nil {
		s.pc = nil
		s.mu.Unlock()
		utils.UncheckedError(pc.Close())
		return errors.Wrap(err, "setting remote description")
	}
	s.state = PeerOfferReceived
	s.mu.Unlock()

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return errors.Wrap(err, "creating answer")
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return errors.Wrap(err, "setting local description")
	}
	// The answer carries all candidates; none are trickled to the client.
	select {
	case <-gathered:
	case <-ctx.Done():
		return errAnswerInterrupted
	case <-s.cancelCtx.Done():
		return errAnswerInterrupted
	}
	local := pc.LocalDescription()
	if err := s.writeJSON(answerMessage{
		MsgType: TypeAnswer,
		SDP:     local.SDP,
		Type:    local.Type.String(),
	}); err != nil {
		return errors.Wrap(err, "sending answer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.canTransition(PeerAnswered) {
		return errSessionClosed
	}
	s.state = PeerAnswered
	s.logger.Debugw("answer sent", "session", s.id)
	return nil
}

// handleCandidate applies one trickled ICE candidate. A null candidate
// marks end-of-candidates and is a no-op.
func (s *PeerSession) handleCandidate(c *candidateInit) error {
	if c == nil {
		s.logger.Debugw("end of candidates", "session", s.id)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case PeerClosed:
		return errSessionClosed
	case PeerIdle:
		return errNoRemoteDesc
	}
	return errors.Wrap(s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}), "adding ice candidate")
}

func (s *PeerSession) newPeerConnection() (*webrtc.PeerConnection, error) {
	var media webrtc.MediaEngine
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, errors.Wrap(err, "registering codecs")
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(&media))
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: s.iceServers})
	if err != nil {
		return nil, errors.Wrap(err, "building peer connection")
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.markConnected()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.logger.Debugw("peer connection ended", "session", s.id, "state", state.String())
			utils.PanicCapturingGo(func() {
				s.close(websocket.CloseNormalClosure, "peer connection "+state.String())
			})
		case webrtc.PeerConnectionStateDisconnected:
			s.logger.Debugw("peer connection degraded", "session", s.id)
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		s.startTrackPump(pc, track)
	})
	return pc, nil
}

func (s *PeerSession) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.canTransition(PeerConnected) {
		return
	}
	s.state = PeerConnected
	s.logger.Infow("peer connected", "session", s.id, "drone_id", s.droneID)
}

// writeJSON is the only socket writer; the mutex keeps frames whole.
func (s *PeerSession) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}
	return errors.Wrap(s.conn.WriteJSON(v), "writing frame")
}

// close tears the session down once: close frame, transport, peer
// connection, then the registration callback.
func (s *PeerSession) close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.cancelFunc()

		s.mu.Lock()
		previous := s.state
		s.state = PeerClosed
		pc := s.pc
		s.mu.Unlock()

		s.writeMu.Lock()
		deadline := time.Now().Add(sessionWriteWait)
		message := websocket.FormatCloseMessage(code, reason)
		utils.UncheckedError(s.conn.WriteControl(websocket.CloseMessage, message, deadline))
		s.writeMu.Unlock()

		utils.UncheckedError(s.conn.Close())
		if pc != nil {
			utils.UncheckedError(pc.Close())
		}
		s.activeBackgroundWorkers.Wait()

		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debugw("session closed",
			"session", s.id, "reason", reason, "previous_state", previous.String())
	})
}

// Close ends the session with a normal closure frame.
func (s *PeerSession) Close(reason string) {
	s.close(websocket.CloseNormalClosure, reason)
}
