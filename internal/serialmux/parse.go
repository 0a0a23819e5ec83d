package serialmux

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/skeleton"
)

const (
	EventTypeSkeletonFrame = "skeleton_frame"
	EventTypeStatus        = "status"
	EventTypeCommandEcho   = "command_echo"
	EventTypeUnknown       = "unknown"
)

// ClassifyPayload inspects a line from the bridge and returns a simple event
// type token. In JSON mode the bridge emits skeleton frames (objects with a
// "joints" array), periodic status objects, and bare command echoes.
func ClassifyPayload(payload string) string {
	if strings.Contains(payload, `"joints"`) {
		return EventTypeSkeletonFrame
	}
	if strings.HasPrefix(payload, "{") {
		return EventTypeStatus
	}
	if strings.HasPrefix(payload, ">") {
		return EventTypeCommandEcho
	}
	return EventTypeUnknown
}

// frameLine is the JSON shape of one skeleton frame on the serial stream.
// Field names match the bridge firmware's serializer.
type frameLine struct {
	Seq        uint32      `json:"seq"`
	SkeletonID uint32      `json:"skeleton_id"`
	CapturedUS int64       `json:"captured_us"`
	Joints     []jointLine `json:"joints"`
}

type jointLine struct {
	ID       uint8   `json:"id"`
	Tracking uint8   `json:"tracking"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
}

// ParseFrameLine decodes one JSON frame line into a skeleton.Frame. Unlike
// the fixed-size UDP format, the serial stream may omit joints the bridge is
// not reporting; missing joints stay at the snapshot's zero value (origin,
// not tracked). Unknown joint ids and tracking states fail the whole line so
// a desynchronised stream fails loudly.
func ParseFrameLine(line string) (skeleton.Frame, error) {
	var fl frameLine
	if err := json.Unmarshal([]byte(line), &fl); err != nil {
		return skeleton.Frame{}, fmt.Errorf("invalid frame line: %w", err)
	}

	joints := make([]pose.Joint, 0, len(fl.Joints))
	for i, j := range fl.Joints {
		id := pose.JointType(j.ID)
		if !id.IsValid() {
			return skeleton.Frame{}, fmt.Errorf("joint %d: invalid joint id %d", i, j.ID)
		}
		tracking := pose.TrackingState(j.Tracking)
		if tracking > pose.TrackingTracked {
			return skeleton.Frame{}, fmt.Errorf("joint %d: invalid tracking state %d for joint %s", i, j.Tracking, id)
		}
		joints = append(joints, pose.Joint{
			Type:     id,
			Tracking: tracking,
			Position: pose.Position{X: j.X, Y: j.Y, Z: j.Z},
		})
	}

	return skeleton.Frame{
		Seq:        fl.Seq,
		SkeletonID: fl.SkeletonID,
		CapturedAt: time.UnixMicro(fl.CapturedUS),
		Snapshot:   pose.NewSnapshot(joints...),
	}, nil
}
