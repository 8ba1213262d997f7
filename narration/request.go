package narration

import (
	"fmt"
	"strings"

	"go.viam.com/sceneaid/vision/proximity"
)

// NothingDetected is the answer for a frame with no qualifying objects. It is returned
// locally, the narrator is never asked to describe an empty scene.
const NothingDetected = "No objects detected."

// Object is the per-object payload handed to the narrator: class name, box center in
// pixel coordinates and relative nearness. Nearness is only meant for qualitative phrasing.
type Object struct {
	Name      string  `json:"name"`
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	Proximity float64 `json:"proximity"`
}

// Line renders the object the way it appears in the prompt.
func (o Object) Line() string {
	return fmt.Sprintf(
		"%s is in front of the user at %.1f X %.1f Y with a relative nearness of %.2f (use this only for qualitative descriptions).",
		o.Name, o.CenterX, o.CenterY, o.Proximity,
	)
}

// Request is everything a Narrator needs to produce one description.
type Request struct {
	Policy  Policy   `json:"policy"`
	Objects []Object `json:"objects"`
	Prompt  string   `json:"prompt"`
}

// Empty reports whether the request is the "nothing detected" sentinel.
func (r *Request) Empty() bool {
	return r == nil || len(r.Objects) == 0
}

// Build turns scored objects into a narration request under the given policy, keeping the
// order of objs. Unknown policies use the scene template. Build never fails; an empty objs
// yields the sentinel request whose prompt is NothingDetected.
func Build(objs []proximity.ScoredObject, policy Policy) *Request {
	if !policy.Valid() {
		policy = PolicyScene
	}
	req := &Request{Policy: policy, Objects: make([]Object, 0, len(objs))}
	if len(objs) == 0 {
		req.Prompt = NothingDetected
		return req
	}

	lines := make([]string, 0, len(objs))
	for _, o := range objs {
		x, y := o.Center()
		obj := Object{Name: o.Label, CenterX: x, CenterY: y, Proximity: o.Proximity}
		req.Objects = append(req.Objects, obj)
		lines = append(lines, obj.Line())
	}
	req.Prompt = instructions(policy) + strings.Join(lines, "\n")
	return req
}
