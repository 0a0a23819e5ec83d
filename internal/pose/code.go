package pose

// RegionCode is the per-region outcome of a posture check.
type RegionCode string

const (
	// CodeInvalid indicates the check could not run, e.g. the configured
	// target angle is outside its legal range. Overlays draw nothing for it.
	CodeInvalid RegionCode = "invalid"
	// CodeIncorrect indicates the region fails the check.
	CodeIncorrect RegionCode = "incorrect"
	// CodeCorrect indicates the region holds the drill position.
	CodeCorrect RegionCode = "correct"
	// CodeBelow indicates the region sits under the accepted band.
	CodeBelow RegionCode = "below"
	// CodeAbove indicates the region sits over the accepted band.
	CodeAbove RegionCode = "above"
)

// Codes lists every region code, in wire order.
func Codes() []RegionCode {
	return []RegionCode{CodeInvalid, CodeIncorrect, CodeCorrect, CodeBelow, CodeAbove}
}

// IsValid reports whether c is one of the defined region codes.
func (c RegionCode) IsValid() bool {
	switch c {
	case CodeInvalid, CodeIncorrect, CodeCorrect, CodeBelow, CodeAbove:
		return true
	}
	return false
}
