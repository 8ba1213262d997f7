// Package sceneaid turns camera frames into narration requests: it asks the detector and
// depth collaborators about a frame, fuses their answers and builds either a scene
// description or a hazard alert.
package sceneaid

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/narration"
	"go.viam.com/sceneaid/rimage"
	"go.viam.com/sceneaid/vision/objectdetection"
	"go.viam.com/sceneaid/vision/proximity"
)

// Detector finds labelled boxes in a frame.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error)
}

// DepthEstimator produces a relative depth map for a frame.
type DepthEstimator interface {
	EstimateDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error)
}

// Options tune which detections take part in fusion.
type Options struct {
	// Confidence is the minimum detector score. Zero means objectdetection.DefaultConfidenceThreshold.
	Confidence float64
	// Labels, when set, restricts detections to these classes.
	Labels []string
	// MinArea drops boxes smaller than this many pixels.
	MinArea int
}

// Service answers scene and hazard questions about frames. It holds no per-request state
// and is safe for concurrent use as long as its collaborators are.
type Service struct {
	detect   objectdetection.Detector
	depth    DepthEstimator
	narrator narration.Narrator
	logger   logging.Logger
}

// NewService wires the collaborators into a service.
func NewService(
	detector Detector,
	depth DepthEstimator,
	narrator narration.Narrator,
	opts Options,
	logger logging.Logger,
) (*Service, error) {
	if detector == nil || depth == nil || narrator == nil {
		return nil, errors.New("scene service needs a detector, a depth estimator and a narrator")
	}
	conf := opts.Confidence
	if conf == 0 {
		conf = objectdetection.DefaultConfidenceThreshold
	}
	if conf < 0 || conf > 1 {
		return nil, errors.Errorf("confidence %v must be in [0, 1]", conf)
	}
	labels := lo.SliceToMap(opts.Labels, func(l string) (string, bool) { return l, true })

	posts := []objectdetection.Postprocessor{objectdetection.NewScoreFilter(conf), objectdetection.NewLabelFilter(labels)}
	if opts.MinArea > 0 {
		posts = append(posts, objectdetection.NewAreaFilter(opts.MinArea))
	}
	detect, err := objectdetection.Build(detector.Detect, posts...)
	if err != nil {
		return nil, err
	}
	return &Service{detect: detect, depth: depth, narrator: narrator, logger: logger}, nil
}

// DescribeScene scores every confident detection in img and returns a scene request with
// the objects in detection order. A request with no objects means nothing was found.
func (s *Service) DescribeScene(ctx context.Context, img image.Image) (*narration.Request, error) {
	ctx, span := trace.StartSpan(ctx, "sceneaid::Service::DescribeScene")
	defer span.End()

	objs, err := s.fuse(ctx, img)
	if err != nil {
		return nil, err
	}
	return narration.Build(proximity.Rank(objs, proximity.NoThreshold), narration.PolicyScene), nil
}

// CheckHazard returns a hazard request when the nearest object's proximity exceeds
// threshold, or nil when nothing is close enough. The nearest object leads the request
// and the remaining objects follow as obstacles.
func (s *Service) CheckHazard(ctx context.Context, img image.Image, threshold float64) (*narration.Request, error) {
	ctx, span := trace.StartSpan(ctx, "sceneaid::Service::CheckHazard")
	defer span.End()

	objs, err := s.fuse(ctx, img)
	if err != nil {
		return nil, err
	}
	ordered, ok := proximity.HazardOrder(objs, threshold)
	if !ok {
		s.logger.Debugw("no hazard", "objects", len(objs), "threshold", threshold)
		return nil, nil
	}
	s.logger.Infow("hazard detected", "label", ordered[0].Label, "proximity", ordered[0].Proximity, "threshold", threshold)
	return narration.Build(ordered, narration.PolicyHazard), nil
}

// Narrate speaks req. The empty request is answered locally with narration.NothingDetected
// and never reaches the narrator.
func (s *Service) Narrate(ctx context.Context, req *narration.Request) (*narration.Narration, error) {
	ctx, span := trace.StartSpan(ctx, "sceneaid::Service::Narrate")
	defer span.End()

	if req.Empty() {
		return &narration.Narration{Text: narration.NothingDetected}, nil
	}
	n, err := s.narrator.Narrate(ctx, req)
	if err != nil {
		return nil, newCollaboratorError(CollaboratorNarrator, err)
	}
	return n, nil
}

// fuse runs both collaborators on img concurrently and scores the detections against the
// nearness map. Detections that cannot be scored are logged and dropped.
func (s *Service) fuse(ctx context.Context, img image.Image) ([]proximity.ScoredObject, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.Wrap(proximity.ErrInvalidInput, "frame is empty")
	}
	start := time.Now()

	var (
		dets []objectdetection.Detection
		dm   *rimage.DepthMap
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if dets, err = s.detect(gctx, img); err != nil {
			return newCollaboratorError(CollaboratorDetector, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if dm, err = s.depth.EstimateDepth(gctx, img); err != nil {
			return newCollaboratorError(CollaboratorDepth, err)
		}
		if !dm.HasData() {
			return newCollaboratorError(CollaboratorDepth, errors.New("depth map is empty"))
		}
		if _, _, ok := dm.MinMax(); !ok {
			return newCollaboratorError(CollaboratorDepth, errors.New("depth map has no finite values"))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	size := img.Bounds().Size()
	if dm.Width() != size.X || dm.Height() != size.Y {
		s.logger.Debugw("resizing depth map to frame", "from", dm.Bounds().Size(), "to", size)
		resized, err := dm.Resize(size.X, size.Y)
		if err != nil {
			return nil, newCollaboratorError(CollaboratorDepth, err)
		}
		dm = resized
	}
	// the map came from the depth model, so anything Normalize rejects is its fault.
	nm, err := proximity.Normalize(dm)
	if err != nil {
		return nil, newCollaboratorError(CollaboratorDepth, err)
	}

	// boxes are in frame coordinates, the nearness map starts at 0,0.
	origin := img.Bounds().Min
	if origin != (image.Point{}) {
		dets = translate(dets, origin)
	}
	objs, skipped := proximity.Score(nm, dets)
	for _, err := range multierr.Errors(skipped) {
		s.logger.Debugw("skipping detection", "error", err)
	}
	s.logger.Debugw("fused detections with depth", "detections", len(dets), "scored", len(objs), "took", time.Since(start))
	return objs, nil
}

func translate(dets []objectdetection.Detection, origin image.Point) []objectdetection.Detection {
	out := make([]objectdetection.Detection, 0, len(dets))
	for _, d := range dets {
		out = append(out, objectdetection.NewDetection(d.BoundingBox().Sub(origin), d.Score(), d.Label()))
	}
	return out
}
