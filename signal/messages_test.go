package signal

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"

	"github.com/skyrelay/groundcore/geodesy"
	"github.com/skyrelay/groundcore/planner"
)

func TestAssignmentMessage(t *testing.T) {
	target := planner.FlyToTarget{
		Coordinate: geodesy.NewCoordinate(57.70048192437, 11.901234567, 66),
		YawDeg:     179.6,
	}
	msg := newAssignmentMessage(target)

	test.That(t, msg.MsgType, test.ShouldEqual, TypeCoordinateAssignment)
	test.That(t, msg.Lat, test.ShouldEqual, "57.700481")
	test.That(t, msg.Lng, test.ShouldEqual, "11.901234")
	test.That(t, msg.Alt, test.ShouldEqual, "66")
	test.That(t, msg.Angle, test.ShouldEqual, "180")
}

func TestAssignmentMessageShortValues(t *testing.T) {
	// Values shorter than the cut never pad.
	target := planner.FlyToTarget{
		Coordinate: geodesy.NewCoordinate(57.7, -122.419416, 99.5),
		YawDeg:     0,
	}
	msg := newAssignmentMessage(target)

	test.That(t, msg.Lat, test.ShouldEqual, "57.7")
	test.That(t, msg.Lng, test.ShouldEqual, "-122.4194")
	test.That(t, msg.Alt, test.ShouldEqual, "99")
	test.That(t, msg.Angle, test.ShouldEqual, "0")
}

func TestParseCommandMessage(t *testing.T) {
	for _, tc := range []struct {
		payload string
		want    CommandMessage
		err     string
	}{
		{
			payload: `{"target_drone_id": 2, "command": "start_video", "timestamp": 1724580000.25}`,
			want:    CommandMessage{TargetDroneID: 2, Command: "start_video", Timestamp: 1724580000.25},
		},
		{
			payload: `{"target_drone_id": "3", "command": "land"}`,
			want:    CommandMessage{TargetDroneID: 3, Command: "land"},
		},
		{
			payload: `{"target_drone_id": " 4 ", "command": "land"}`,
			want:    CommandMessage{TargetDroneID: 4, Command: "land"},
		},
		{
			payload: `{"target_drone_id": 1, "command": "goto", "payload": {"mode": "fast"}}`,
			want: CommandMessage{
				TargetDroneID: 1,
				Command:       "goto",
				Payload:       map[string]interface{}{"mode": "fast"},
			},
		},
		{
			payload: `{"command": "land"}`,
			err:     "missing target_drone_id",
		},
		{
			payload: `{"target_drone_id": 2}`,
			err:     "missing command",
		},
		{
			payload: `{"target_drone_id": 0, "command": "land"}`,
			err:     "must be an integer",
		},
		{
			payload: `{"target_drone_id": -1, "command": "land"}`,
			err:     "must be an integer",
		},
		{
			payload: `{"target_drone_id": 1.5, "command": "land"}`,
			err:     "must be an integer",
		},
		{
			payload: `{"target_drone_id": "abc", "command": "land"}`,
			err:     "must be an integer",
		},
		{
			payload: `{not json`,
			err:     "parsing command",
		},
	} {
		t.Run(tc.payload, func(t *testing.T) {
			cmd, err := ParseCommandMessage([]byte(tc.payload))
			if tc.err == "" {
				test.That(t, err, test.ShouldBeNil)
				test.That(t, cmd, test.ShouldResemble, tc.want)
				return
			}
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestCommandMessageRoundTrip(t *testing.T) {
	cmd := CommandMessage{
		TargetDroneID: 2,
		Command:       "start_tracking",
		Payload:       map[string]interface{}{"mode": "follow", "speed": 4.5},
		Timestamp:     1724580000.25,
	}
	data, err := cmd.Encode()
	test.That(t, err, test.ShouldBeNil)

	parsed, err := ParseCommandMessage(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldResemble, cmd)
}

func TestCommandFrame(t *testing.T) {
	frame := commandFrame(CommandMessage{
		TargetDroneID: 1,
		Command:       "goto",
		Payload:       map[string]interface{}{"latitude": 57.7, "speed": "fast"},
	})
	test.That(t, frame["msg_type"], test.ShouldEqual, "goto")
	test.That(t, frame["latitude"], test.ShouldEqual, 57.7)
	test.That(t, frame["speed"], test.ShouldEqual, "fast")

	// The command name always wins over a payload key of the same name.
	frame = commandFrame(CommandMessage{
		TargetDroneID: 1,
		Command:       "goto",
		Payload:       map[string]interface{}{"msg_type": "spoofed"},
	})
	test.That(t, frame["msg_type"], test.ShouldEqual, "goto")
}

func TestClientMessageCandidateNull(t *testing.T) {
	var msg clientMessage
	err := json.Unmarshal([]byte(`{"msg_type": "candidate", "candidate": null}`), &msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.MsgType, test.ShouldEqual, TypeCandidate)
	test.That(t, msg.Candidate, test.ShouldBeNil)

	mid := "0"
	var line uint16
	err = json.Unmarshal([]byte(
		`{"msg_type": "candidate", "candidate": {"candidate": "candidate:1 1 udp 1 127.0.0.1 4 typ host", "sdpMid": "0", "sdpMLineIndex": 0}}`,
	), &msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.Candidate, test.ShouldResemble, &candidateInit{
		Candidate:     "candidate:1 1 udp 1 127.0.0.1 4 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &line,
	})
}
