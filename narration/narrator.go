// Package narration builds the requests sent to a language/speech collaborator and defines
// what comes back.
package narration

import (
	"context"
	"encoding/base64"
	"time"
)

// Narrator turns a narration request into text and speech.
type Narrator interface {
	Narrate(ctx context.Context, req *Request) (*Narration, error)
}

// Narration is a spoken description. Audio may be empty when only text was produced.
type Narration struct {
	Text          string
	Audio         []byte
	AudioMIMEType string
	AudioDuration time.Duration
}

// DataURI renders the audio as a base64 data URI, or "" when there is none.
func DataURI(n *Narration) string {
	if n == nil || len(n.Audio) == 0 {
		return ""
	}
	mime := n.AudioMIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(n.Audio)
}
