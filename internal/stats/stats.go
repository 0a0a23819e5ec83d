// Package stats summarises a stored session: how frames distributed over
// region codes, how long each code was held continuously, and the shape
// of the measured leg-angle series. The report CLI and the session stats
// endpoint both serve these numbers.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/pose"
)

// AngleSummary describes the distribution of the measured leg angles.
type AngleSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

// HoldSummary describes how long one region code was held continuously.
// A hold is a maximal run of consecutive frames with the same code; its
// duration is the capture-time span of the run, so a single-frame hold
// has duration zero.
type HoldSummary struct {
	Code      string  `json:"code"`
	Count     int     `json:"count"`
	MeanSec   float64 `json:"mean_sec"`
	StdDevSec float64 `json:"stddev_sec"`
	MaxSec    float64 `json:"max_sec"`
	P50Sec    float64 `json:"p50_sec"`
	P95Sec    float64 `json:"p95_sec"`
}

// RegionSummary describes one region's code stream.
type RegionSummary struct {
	// Counts holds frames per code, only for codes that occurred.
	Counts map[string]int `json:"counts"`
	// Fractions holds each code's share of the session's frames.
	Fractions map[string]float64 `json:"fractions"`
	// Dominant is the code with the most frames, ties broken by wire order.
	Dominant string `json:"dominant"`
	// Holds summarises the run lengths per code, in wire order.
	Holds []HoldSummary `json:"holds"`
}

// SessionStats is the full summary of one stored session.
type SessionStats struct {
	SessionID   int           `json:"session_id"`
	TotalFrames int           `json:"total_frames"`
	DurationSec float64       `json:"duration_sec"`
	Arms        RegionSummary `json:"arms"`
	Leg         RegionSummary `json:"leg"`
	LegAngle    AngleSummary  `json:"leg_angle"`
}

// Compute summarises a session's stored timeline. An empty series yields
// zero-valued stats rather than an error; the caller decides whether an
// empty session is worth reporting.
func Compute(sessionID int, series *db.FrameCodeSeries) *SessionStats {
	s := &SessionStats{SessionID: sessionID}
	if series == nil || len(series.Seq) == 0 {
		s.Arms = emptyRegionSummary()
		s.Leg = emptyRegionSummary()
		return s
	}

	s.TotalFrames = len(series.Seq)
	s.DurationSec = series.CapturedAtUnix[len(series.CapturedAtUnix)-1] - series.CapturedAtUnix[0]
	s.Arms = summarizeRegion(series.ArmsCodes, series.CapturedAtUnix)
	s.Leg = summarizeRegion(series.LegCodes, series.CapturedAtUnix)
	s.LegAngle = summarizeAngles(series.LegAngles)
	return s
}

func emptyRegionSummary() RegionSummary {
	return RegionSummary{
		Counts:    make(map[string]int),
		Fractions: make(map[string]float64),
	}
}

func summarizeRegion(codes []string, ts []float64) RegionSummary {
	rs := emptyRegionSummary()
	if len(codes) == 0 {
		return rs
	}

	for _, code := range codes {
		rs.Counts[code]++
	}
	total := float64(len(codes))
	for code, n := range rs.Counts {
		rs.Fractions[code] = float64(n) / total
	}

	best := -1
	for _, code := range pose.Codes() {
		if n := rs.Counts[string(code)]; n > best {
			best = n
			rs.Dominant = string(code)
		}
	}

	holds := holdDurations(codes, ts)
	for _, code := range pose.Codes() {
		durations, ok := holds[string(code)]
		if !ok {
			continue
		}
		rs.Holds = append(rs.Holds, summarizeHolds(string(code), durations))
	}
	return rs
}

// holdDurations splits a code stream into maximal same-code runs and
// returns each run's capture-time span, grouped by code.
func holdDurations(codes []string, ts []float64) map[string][]float64 {
	holds := make(map[string][]float64)
	if len(codes) == 0 {
		return holds
	}

	runStart := 0
	for i := 1; i <= len(codes); i++ {
		if i < len(codes) && codes[i] == codes[runStart] {
			continue
		}
		code := codes[runStart]
		holds[code] = append(holds[code], ts[i-1]-ts[runStart])
		runStart = i
	}
	return holds
}

func summarizeHolds(code string, durations []float64) HoldSummary {
	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	hs := HoldSummary{
		Code:    code,
		Count:   len(durations),
		MeanSec: stat.Mean(durations, nil),
		MaxSec:  sorted[len(sorted)-1],
		P50Sec:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95Sec:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(durations) > 1 {
		hs.StdDevSec = stat.StdDev(durations, nil)
	}
	return hs
}

func summarizeAngles(angles []float64) AngleSummary {
	if len(angles) == 0 {
		return AngleSummary{}
	}

	sorted := make([]float64, len(angles))
	copy(sorted, angles)
	sort.Float64s(sorted)

	as := AngleSummary{
		Count: len(angles),
		Mean:  stat.Mean(angles, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P25:   stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P75:   stat.Quantile(0.75, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(angles) > 1 {
		if sd := stat.StdDev(angles, nil); !math.IsNaN(sd) {
			as.StdDev = sd
		}
	}
	return as
}
