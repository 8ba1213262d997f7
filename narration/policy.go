package narration

// Policy selects the instruction template a Request is built with.
type Policy string

const (
	// PolicyScene asks for a left-to-right qualitative description of everything in view.
	PolicyScene Policy = "scene"
	// PolicyHazard asks for a warning about the nearest object followed by a safe path.
	PolicyHazard Policy = "hazard"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyScene, PolicyHazard:
		return true
	default:
		return false
	}
}
