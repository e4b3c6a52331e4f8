package signal

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"go.viam.com/utils"
)

// FrameSink receives RTP packets pulled off remote tracks. Offer must not
// block; a saturated sink reports false and the packet is shed.
type FrameSink interface {
	Offer(sessionID string, pkt *rtp.Packet) bool
}

// TrackFrame pairs one RTP packet with the session that produced it.
type TrackFrame struct {
	SessionID string
	Packet    *rtp.Packet
}

// QueueSink buffers frames in a bounded channel for a downstream consumer.
type QueueSink struct {
	frames chan TrackFrame
}

// NewQueueSink returns a sink holding at most capacity frames.
func NewQueueSink(capacity int) *QueueSink {
	return &QueueSink{frames: make(chan TrackFrame, capacity)}
}

// Offer enqueues the packet if there is room.
func (q *QueueSink) Offer(sessionID string, pkt *rtp.Packet) bool {
	select {
	case q.frames <- TrackFrame{SessionID: sessionID, Packet: pkt}:
		return true
	default:
		return false
	}
}

// Frames exposes the buffered stream.
func (q *QueueSink) Frames() <-chan TrackFrame {
	return q.frames
}

const (
	keyframeInterval   = 3 * time.Second
	droppedLogInterval = 300
)

// startTrackPump drains a remote track for the life of the session. Video
// tracks also get a keyframe request loop so late consumers can decode.
func (s *PeerSession) startTrackPump(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	s.logger.Infow("remote track started",
		"session", s.id, "kind", track.Kind().String(), "ssrc", uint32(track.SSRC()))

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		s.activeBackgroundWorkers.Add(1)
		utils.ManagedGo(func() { s.keyframeLoop(pc, track) }, s.activeBackgroundWorkers.Done)
	}

	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() { s.pumpTrack(track) }, s.activeBackgroundWorkers.Done)
}

func (s *PeerSession) keyframeLoop(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	for utils.SelectContextOrWait(s.cancelCtx, keyframeInterval) {
		pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
		if err := pc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
			s.logger.Debugw("keyframe request failed; stopping", "session", s.id, "error", err)
			return
		}
	}
}

// pumpTrack reads RTP until the track or session ends. Packets flow into
// the sink when one is attached; overflow is shed so a slow consumer can
// never stall the peer connection.
func (s *PeerSession) pumpTrack(track *webrtc.TrackRemote) {
	var dropped uint64
	for {
		if s.cancelCtx.Err() != nil {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			s.logger.Debugw("remote track ended", "session", s.id, "error", err)
			return
		}
		if s.sink == nil {
			continue
		}
		if !s.sink.Offer(s.id, pkt) {
			dropped++
			if dropped%droppedLogInterval == 1 {
				s.logger.Debugw("frame sink saturated; shedding packets",
					"session", s.id, "dropped", dropped)
			}
		}
	}
}
