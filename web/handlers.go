package web

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"go.viam.com/sceneaid/narration"
	"go.viam.com/sceneaid/rimage"
	"go.viam.com/sceneaid/services/sceneaid"
	"go.viam.com/sceneaid/vision/proximity"
)

type frameRequest struct {
	Frame string `json:"frame"`
	// Threshold overrides the configured hazard threshold for a nearby check.
	Threshold *float64 `json:"threshold,omitempty"`
}

type description struct {
	Description  string `json:"description"`
	AudioContent string `json:"audio_content"`
}

type describeResponse struct {
	// SceneDescription is either a description or the narration.NothingDetected string.
	SceneDescription interface{} `json:"sceneDescription"`
}

type nearbyResponse struct {
	NearByObject      bool         `json:"nearByObject"`
	ObjectDescription *description `json:"objectDescription"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeFrame(w, r)
	if !ok {
		return
	}
	img, err := rimage.DecodeBase64Image(body.Frame)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	req, err := s.svc.DescribeScene(r.Context(), img)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if req.Empty() {
		s.writeJSON(w, r, http.StatusOK, describeResponse{SceneDescription: narration.NothingDetected})
		return
	}
	n, err := s.svc.Narrate(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, describeResponse{SceneDescription: toDescription(n)})
}

func (s *Server) handleCheckForNearBy(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeFrame(w, r)
	if !ok {
		return
	}
	img, err := rimage.DecodeBase64Image(body.Frame)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	threshold := s.options.HazardThreshold
	if body.Threshold != nil {
		threshold = *body.Threshold
	}

	req, err := s.svc.CheckHazard(r.Context(), img, threshold)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if req == nil {
		s.writeJSON(w, r, http.StatusOK, nearbyResponse{})
		return
	}
	n, err := s.svc.Narrate(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nearbyResponse{NearByObject: true, ObjectDescription: toDescription(n)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeFrame(w http.ResponseWriter, r *http.Request) (*frameRequest, bool) {
	var body frameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return nil, false
	}
	if body.Frame == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New(`"frame" is required`))
		return nil, false
	}
	return &body, true
}

func toDescription(n *narration.Narration) *description {
	return &description{Description: n.Text, AudioContent: narration.DataURI(n)}
}

// writeServiceError maps service errors to status codes: collaborator failures are a bad
// gateway, malformed input is a bad request and anything else is internal.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case sceneaid.IsCollaboratorFailure(err):
		s.writeError(w, r, http.StatusBadGateway, err)
	case errors.Is(err, proximity.ErrInvalidInput), errors.Is(err, proximity.ErrEmptyRegion):
		s.writeError(w, r, http.StatusBadRequest, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := loggerFromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		logger.Debugw("bad request", "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFromContext(r.Context(), s.logger).Debugw("could not write response", "error", err)
	}
}
