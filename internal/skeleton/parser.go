package skeleton

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/kinetic-data/posture.report/internal/pose"
)

/*
Bridge Skeleton Frame Format

The sensor bridge emits one UDP datagram per tracked skeleton per capture
tick (30 Hz per skeleton at full rate). Datagrams are fixed-size and
little-endian throughout:

FRAME STRUCTURE (304 bytes total):
├── Header (24 bytes)
│   ├── magic       uint16   0x4B53 ("SK" on the wire)
│   ├── version     uint8    format version, currently 0x01
│   ├── flags       uint8    reserved for the bridge, not validated
│   ├── sequence    uint32   per-stream monotonic counter
│   ├── skeleton    uint32   bridge-assigned skeleton id
│   ├── captured    uint64   capture time, microseconds since Unix epoch
│   ├── jointCount  uint8    always 20
│   └── reserved    [3]uint8
└── Joint records (280 bytes) - 20 records × 14 bytes each
    └── Each record: id uint8 + tracking uint8 + x, y, z float32 (meters)

The bridge writes records in joint ordinal order. The parser tolerates any
order and lets the last record win when an id repeats, matching snapshot
assembly semantics, but rejects unknown joint ids and tracking states so a
desynchronised byte stream fails loudly instead of producing a skewed
skeleton.
*/

// Bridge skeleton frame structure constants
// These define the fixed format of UDP datagrams sent by the sensor bridge
const (
	FRAME_MAGIC       = 0x4B53 // Frame marker, reads as "SK" on the wire
	FRAME_VERSION     = 0x01   // Supported wire format version
	HEADER_SIZE       = 24     // Fixed header size in bytes
	JOINT_RECORD_SIZE = 14     // Joint record: id + tracking + 3 × float32
	JOINT_RECORDS     = pose.JointCount
	FRAME_SIZE        = HEADER_SIZE + JOINT_RECORDS*JOINT_RECORD_SIZE // 304 bytes total

	// Header field offsets
	OFFSET_MAGIC       = 0
	OFFSET_VERSION     = 2
	OFFSET_FLAGS       = 3
	OFFSET_SEQUENCE    = 4
	OFFSET_SKELETON_ID = 8
	OFFSET_CAPTURED    = 12
	OFFSET_JOINT_COUNT = 20
)

// Parser decodes bridge datagrams into frames. It keeps lightweight
// counters for debugging; use FrameStats for operational metrics.
type Parser struct {
	frameCount int
	lastSeq    uint32
	debug      bool
}

// NewParser creates a parser for the current bridge wire format.
func NewParser() *Parser {
	return &Parser{}
}

// SetDebug enables or disables debug logging.
func (p *Parser) SetDebug(enabled bool) {
	p.debug = enabled
}

// ParseFrame parses a complete bridge datagram into a Frame. The datagram
// must be exactly FRAME_SIZE bytes with a valid magic, version and joint
// count; any joint record with an unknown id or tracking state fails the
// whole frame.
func (p *Parser) ParseFrame(data []byte) (Frame, error) {
	p.frameCount++

	if len(data) != FRAME_SIZE {
		return Frame{}, fmt.Errorf("invalid frame size: expected %d, got %d", FRAME_SIZE, len(data))
	}

	magic := binary.LittleEndian.Uint16(data[OFFSET_MAGIC:])
	if magic != FRAME_MAGIC {
		return Frame{}, fmt.Errorf("invalid frame magic: expected 0x%04X, got 0x%04X", FRAME_MAGIC, magic)
	}

	if version := data[OFFSET_VERSION]; version != FRAME_VERSION {
		return Frame{}, fmt.Errorf("unsupported frame version: %d", version)
	}

	if count := data[OFFSET_JOINT_COUNT]; count != JOINT_RECORDS {
		return Frame{}, fmt.Errorf("invalid joint count: expected %d, got %d", JOINT_RECORDS, count)
	}

	frame := Frame{
		Seq:        binary.LittleEndian.Uint32(data[OFFSET_SEQUENCE:]),
		SkeletonID: binary.LittleEndian.Uint32(data[OFFSET_SKELETON_ID:]),
		CapturedAt: time.UnixMicro(int64(binary.LittleEndian.Uint64(data[OFFSET_CAPTURED:]))),
	}

	for i := 0; i < JOINT_RECORDS; i++ {
		rec := data[HEADER_SIZE+i*JOINT_RECORD_SIZE:]

		id := pose.JointType(rec[0])
		if !id.IsValid() {
			return Frame{}, fmt.Errorf("record %d: invalid joint id %d", i, rec[0])
		}

		tracking := pose.TrackingState(rec[1])
		if tracking > pose.TrackingTracked {
			return Frame{}, fmt.Errorf("record %d: invalid tracking state %d for joint %s", i, rec[1], id)
		}

		frame.Snapshot.Joints[id] = pose.Joint{
			Type:     id,
			Tracking: tracking,
			Position: pose.Position{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[2:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[6:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[10:]))),
			},
		}
	}

	if p.debug && p.frameCount <= 10 {
		log.Printf("parsed frame seq=%d skeleton=%d captured=%s", frame.Seq, frame.SkeletonID, frame.CapturedAt.Format(time.RFC3339Nano))
	}
	p.lastSeq = frame.Seq

	return frame, nil
}

// LastSeq returns the sequence number of the most recently parsed frame.
func (p *Parser) LastSeq() uint32 {
	return p.lastSeq
}

// MarshalFrame encodes a frame into the bridge wire format. Joints are
// written in ordinal order; the frame's capture time is truncated to
// microseconds. The replay tooling and test fixtures use this to produce
// byte-identical bridge traffic.
func MarshalFrame(f Frame) []byte {
	data := make([]byte, FRAME_SIZE)

	binary.LittleEndian.PutUint16(data[OFFSET_MAGIC:], FRAME_MAGIC)
	data[OFFSET_VERSION] = FRAME_VERSION
	binary.LittleEndian.PutUint32(data[OFFSET_SEQUENCE:], f.Seq)
	binary.LittleEndian.PutUint32(data[OFFSET_SKELETON_ID:], f.SkeletonID)
	binary.LittleEndian.PutUint64(data[OFFSET_CAPTURED:], uint64(f.CapturedAt.UnixMicro()))
	data[OFFSET_JOINT_COUNT] = JOINT_RECORDS

	for i := 0; i < JOINT_RECORDS; i++ {
		j := f.Snapshot.Joints[i]
		rec := data[HEADER_SIZE+i*JOINT_RECORD_SIZE:]
		rec[0] = uint8(i)
		rec[1] = uint8(j.Tracking)
		binary.LittleEndian.PutUint32(rec[2:], math.Float32bits(float32(j.Position.X)))
		binary.LittleEndian.PutUint32(rec[6:], math.Float32bits(float32(j.Position.Y)))
		binary.LittleEndian.PutUint32(rec[10:], math.Float32bits(float32(j.Position.Z)))
	}

	return data
}
