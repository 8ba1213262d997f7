package inject

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/sceneaid/narration"
)

// Narrator is an injected narrator.
type Narrator struct {
	narration.Narrator
	NarrateFunc func(ctx context.Context, req *narration.Request) (*narration.Narration, error)
}

// Narrate calls the injected Narrate or the real version.
func (n *Narrator) Narrate(ctx context.Context, req *narration.Request) (*narration.Narration, error) {
	if n.NarrateFunc == nil {
		if n.Narrator == nil {
			return nil, errors.New("Narrate not injected")
		}
		return n.Narrator.Narrate(ctx, req)
	}
	return n.NarrateFunc(ctx, req)
}
