package objectdetection

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// DefaultConfidenceThreshold is the score below which detector output is dropped.
const DefaultConfidenceThreshold = 0.25

// NewScoreFilter returns a function that filters out detections below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Score() >= conf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewAreaFilter returns a function that filters out detections below a certain area.
func NewAreaFilter(area int) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.BoundingBox().Dx()*d.BoundingBox().Dy() >= area {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewLabelFilter returns a function that keeps only detections whose label is in labels.
// An empty set keeps everything.
func NewLabelFilter(labels map[string]bool) Postprocessor {
	return func(in []Detection) []Detection {
		if len(labels) == 0 {
			return in
		}
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if labels[d.Label()] {
				out = append(out, d)
			}
		}
		return out
	}
}
