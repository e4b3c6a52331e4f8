// Package signal implements the drone signalling server: the WebSocket
// endpoint drones connect to, the per-connection peer sessions driving the
// WebRTC handshake, and the bridge that fans bus commands out to sessions.
package signal

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/skyrelay/groundcore/planner"
)

// Client to server message types. Casing is part of the wire contract.
const (
	TypeCoordinateRequest = "Coordinate_request"
	TypePosition          = "Position"
	TypeDebug             = "Debug"
	TypeOffer             = "offer"
	TypeCandidate         = "candidate"
	TypeAnswer            = "answer"
	TypeIdentify          = "Identify"
)

// TypeCoordinateAssignment is the server to client fly-to frame.
const TypeCoordinateAssignment = "Coordinate_assignment"

// clientMessage is the superset of every inbound frame. msg_type selects
// which fields are meaningful.
type clientMessage struct {
	MsgType string `json:"msg_type"`

	// Position
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`

	// Debug
	Msg string `json:"msg,omitempty"`

	// offer; Type defaults to "offer" when omitted
	SDP  string `json:"sdp,omitempty"`
	Type string `json:"type,omitempty"`

	// candidate; null marks end-of-candidates and is a no-op
	Candidate *candidateInit `json:"candidate,omitempty"`

	// Identify
	DroneID string `json:"drone_id,omitempty"`
}

// candidateInit is the trickled ICE candidate object.
type candidateInit struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// answerMessage carries the server's SDP answer back to the drone.
type answerMessage struct {
	MsgType string `json:"msg_type"`
	SDP     string `json:"sdp"`
	Type    string `json:"type"`
}

// assignmentMessage is the wire form of a fly-to target. Every value rides
// as a string: latitude and longitude truncated to 9 characters, altitude
// to 2, and the yaw angle as an integer string.
type assignmentMessage struct {
	MsgType string `json:"msg_type"`
	Lat     string `json:"lat"`
	Lng     string `json:"lng"`
	Alt     string `json:"alt"`
	Angle   string `json:"angle"`
}

func newAssignmentMessage(target planner.FlyToTarget) assignmentMessage {
	return assignmentMessage{
		MsgType: TypeCoordinateAssignment,
		Lat:     truncate(formatFloat(target.Coordinate.Lat()), 9),
		Lng:     truncate(formatFloat(target.Coordinate.Lng()), 9),
		Alt:     truncate(formatFloat(target.Coordinate.Alt()), 2),
		Angle:   strconv.Itoa(int(math.Round(target.YawDeg))),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncate cuts s to at most n characters, without rounding.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CommandMessage is one bus command addressed to a drone slot.
type CommandMessage struct {
	TargetDroneID int                    `json:"target_drone_id"`
	Command       string                 `json:"command"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     float64                `json:"timestamp"`
}

// Command parse failures; frames carrying them are dropped.
var (
	errMissingTarget  = errors.New("command missing target_drone_id")
	errBadTarget      = errors.New("target_drone_id must be an integer >= 1")
	errMissingCommand = errors.New("command missing command field")
)

// Encode serialises the command the way publishers put it on the bus.
func (m CommandMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encoding command")
	}
	return data, nil
}

// ParseCommandMessage parses a bus payload. target_drone_id is coerced from
// a JSON number or a numeric string and must be at least 1.
func ParseCommandMessage(payload []byte) (CommandMessage, error) {
	var raw struct {
		TargetDroneID json.RawMessage        `json:"target_drone_id"`
		Command       string                 `json:"command"`
		Payload       map[string]interface{} `json:"payload"`
		Timestamp     float64                `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return CommandMessage{}, errors.Wrap(err, "parsing command")
	}
	if len(raw.TargetDroneID) == 0 {
		return CommandMessage{}, errMissingTarget
	}
	if raw.Command == "" {
		return CommandMessage{}, errMissingCommand
	}

	id, err := coerceDroneID(raw.TargetDroneID)
	if err != nil {
		return CommandMessage{}, err
	}
	return CommandMessage{
		TargetDroneID: id,
		Command:       raw.Command,
		Payload:       raw.Payload,
		Timestamp:     raw.Timestamp,
	}, nil
}

func coerceDroneID(raw json.RawMessage) (int, error) {
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		id := int(asNumber)
		if float64(id) != asNumber || id < 1 {
			return 0, errBadTarget
		}
		return id, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0, errBadTarget
	}
	id, err := strconv.Atoi(strings.TrimSpace(asString))
	if err != nil || id < 1 {
		return 0, errBadTarget
	}
	return id, nil
}

// commandFrame flattens a command into the outbound client frame: payload
// fields ride at the top level and the command name becomes msg_type.
func commandFrame(cmd CommandMessage) map[string]interface{} {
	frame := make(map[string]interface{}, len(cmd.Payload)+1)
	for k, v := range cmd.Payload {
		frame[k] = v
	}
	frame["msg_type"] = cmd.Command
	return frame
}
