// Package skeleton decodes the sensor bridge's skeleton stream into typed
// frames and tracks ingest health. The bridge sends one fixed-size
// datagram per tracked skeleton per capture tick; this package owns the
// wire format, its parser, and the frame type the classification pipeline
// consumes.
package skeleton

import (
	"time"

	"github.com/kinetic-data/posture.report/internal/pose"
)

// Frame is one parsed skeleton observation.
type Frame struct {
	// Seq is the bridge's per-stream monotonic counter; gaps mean loss.
	Seq uint32
	// SkeletonID is the bridge-assigned id of the tracked person.
	SkeletonID uint32
	// CapturedAt is the bridge capture time.
	CapturedAt time.Time
	// Snapshot holds the twenty joints.
	Snapshot pose.Snapshot
}
