package serialmux

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/kinetic-data/posture.report/internal/skeleton"
)

// FrameHandler consumes frames decoded from the serial line stream. The
// daemon passes the same sink it hands to the UDP listener so both transports
// feed one classification pipeline.
type FrameHandler interface {
	HandleFrame(frame skeleton.Frame)
}

// CurrentState holds the latest status values received from the bridge
// and is intentionally package-level so admin routes or tests can inspect it.
var CurrentState map[string]any

// HandleSkeletonFrame decodes a frame line and hands it to the sink.
func HandleSkeletonFrame(sink FrameHandler, payload string) error {
	frame, err := ParseFrameLine(payload)
	if err != nil {
		return err
	}
	if sink != nil {
		sink.HandleFrame(frame)
	}
	return nil
}

// HandleStatus merges a bridge status object into CurrentState.
func HandleStatus(payload string) error {
	var statusValues map[string]any

	if err := json.Unmarshal([]byte(payload), &statusValues); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %v", err)
	}

	if CurrentState == nil {
		CurrentState = make(map[string]any)
	}
	for k, v := range statusValues {
		CurrentState[k] = v
	}

	return nil
}

// HandleEvent dispatches one serial line to the matching handler.
func HandleEvent(sink FrameHandler, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeSkeletonFrame:
		if err := HandleSkeletonFrame(sink, payload); err != nil {
			return fmt.Errorf("failed to handle skeleton frame: %v", err)
		}
	case EventTypeStatus:
		if err := HandleStatus(payload); err != nil {
			return fmt.Errorf("failed to handle status line: %v", err)
		}
	case EventTypeCommandEcho:
		log.Printf("Bridge ack: %s", payload)
	default:
		log.Printf("unknown event type: %s", payload)
	}
	return nil
}
