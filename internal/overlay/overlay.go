// Package overlay maps classification outcomes onto the drawing
// vocabulary shared by the feedback surfaces: a color per region code and
// the bone segments each surface renders per body region. The package
// holds no state; every surface (browser canvas, terminal watch, report
// charts) applies the same mapping so a given code always looks the same.
package overlay

import (
	"fmt"

	"github.com/kinetic-data/posture.report/internal/pose"
)

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// Hex returns the #rrggbb form used by the web overlay and chart themes.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Feedback palette
var (
	ColorIncorrect = Color{R: 0xff, G: 0x3b, B: 0x30} // red
	ColorCorrect   = Color{R: 0x34, G: 0xc7, B: 0x59} // green
	ColorBelow     = Color{R: 0xff, G: 0xcc, B: 0x00} // yellow
	ColorAbove     = Color{R: 0x32, G: 0xad, B: 0xe6} // cyan
	ColorNeutral   = Color{R: 0x8e, G: 0x8e, B: 0x93} // untinted bones
)

// ColorFor returns the overlay color for a region code. The second return
// is false for codes that draw nothing (Invalid and undefined codes).
func ColorFor(code pose.RegionCode) (Color, bool) {
	switch code {
	case pose.CodeIncorrect:
		return ColorIncorrect, true
	case pose.CodeCorrect:
		return ColorCorrect, true
	case pose.CodeBelow:
		return ColorBelow, true
	case pose.CodeAbove:
		return ColorAbove, true
	default:
		return Color{}, false
	}
}

// Label returns the short feedback text surfaces show next to a region.
func Label(code pose.RegionCode) string {
	switch code {
	case pose.CodeIncorrect:
		return "off target"
	case pose.CodeCorrect:
		return "on target"
	case pose.CodeBelow:
		return "under target"
	case pose.CodeAbove:
		return "over target"
	case pose.CodeInvalid:
		return "check config"
	default:
		return string(code)
	}
}

// Bone is one drawable skeleton segment.
type Bone struct {
	A, B pose.JointType
}

// Bone tables, grouped by the region whose code tints them. Surfaces draw
// torso bones in the neutral color.
var (
	armBones = []Bone{
		{pose.JointShoulderCenter, pose.JointShoulderLeft},
		{pose.JointShoulderLeft, pose.JointElbowLeft},
		{pose.JointElbowLeft, pose.JointWristLeft},
		{pose.JointWristLeft, pose.JointHandLeft},
		{pose.JointShoulderCenter, pose.JointShoulderRight},
		{pose.JointShoulderRight, pose.JointElbowRight},
		{pose.JointElbowRight, pose.JointWristRight},
		{pose.JointWristRight, pose.JointHandRight},
	}
	legBones = []Bone{
		{pose.JointHipCenter, pose.JointHipLeft},
		{pose.JointHipLeft, pose.JointKneeLeft},
		{pose.JointKneeLeft, pose.JointAnkleLeft},
		{pose.JointAnkleLeft, pose.JointFootLeft},
		{pose.JointHipCenter, pose.JointHipRight},
		{pose.JointHipRight, pose.JointKneeRight},
		{pose.JointKneeRight, pose.JointAnkleRight},
		{pose.JointAnkleRight, pose.JointFootRight},
	}
	torsoBones = []Bone{
		{pose.JointHead, pose.JointShoulderCenter},
		{pose.JointShoulderCenter, pose.JointSpine},
		{pose.JointSpine, pose.JointHipCenter},
	}
)

// ArmBones returns the segments tinted by the arms code.
func ArmBones() []Bone { return armBones }

// LegBones returns the segments tinted by the leg code.
func LegBones() []Bone { return legBones }

// TorsoBones returns the neutral spine segments.
func TorsoBones() []Bone { return torsoBones }
