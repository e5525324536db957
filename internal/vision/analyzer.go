package vision

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"proctor-engine/internal/config"
	"proctor-engine/internal/monitor"
)

// Violation type tags.
const (
	TypeNoFace          = "no_face"
	TypeMultipleFaces   = "multiple_faces"
	TypeSunglasses      = "sunglasses"
	TypeForbiddenObject = "forbidden_object"
	TypeAnalysisSkipped = "analysis_unavailable"
)

// Violation is one rule breach derived from a detection.
type Violation struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AnalysisResult is the pipeline output for one snapshot. It has no
// independent lifecycle: it is discarded when clean, or converted into a
// persisted violation record when not.
type AnalysisResult struct {
	IsClean    bool        `json:"isClean"`
	FaceCount  int         `json:"faceCount"`
	Violations []Violation `json:"violations"`
	Confidence int         `json:"confidence"` // 0-100
}

// Descriptions returns the human-readable violation strings in order.
func (r AnalysisResult) Descriptions() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Description)
	}
	return out
}

// Types returns the violation type tags in order.
func (r AnalysisResult) Types() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Type)
	}
	return out
}

// Analyzer applies the violation decision policy to classifier output. The
// classifier call is the only blocking operation in the engine; a weighted
// semaphore caps how many run at once so a slow vision service degrades
// snapshot analysis, not signaling.
type Analyzer struct {
	classifier Classifier
	sem        *semaphore.Weighted
	tracer     *monitor.Tracer
	metrics    *monitor.Metrics

	objectConfidence     float64
	sunglassesConfidence float64
	forbidden            []string
}

func NewAnalyzer(classifier Classifier, cfg config.ClassifierConfig, metrics *monitor.Metrics) *Analyzer {
	forbidden := make([]string, 0, len(cfg.ForbiddenObjects))
	for _, f := range cfg.ForbiddenObjects {
		forbidden = append(forbidden, strings.ToLower(f))
	}

	return &Analyzer{
		classifier:           classifier,
		sem:                  semaphore.NewWeighted(cfg.MaxConcurrent),
		tracer:               monitor.NewTracer(),
		metrics:              metrics,
		objectConfidence:     cfg.ObjectConfidence,
		sunglassesConfidence: cfg.SunglassesConfidence,
		forbidden:            forbidden,
	}
}

// Analyze runs the classifier on one snapshot and derives the violation
// list. The policy, in order: no face is a violation; more than one face is
// a violation; with exactly one face, secondary checks (sunglasses) may add
// violations; any forbidden object above the confidence threshold adds one
// violation per match. When the classifier is unavailable or errors, the
// pipeline fails open: a clean result with a single informational entry,
// favoring availability of the exam over strict proctoring.
func (a *Analyzer) Analyze(ctx context.Context, image []byte) AnalysisResult {
	start := time.Now()

	ctx, span := a.tracer.StartSpan(ctx, "analyze")
	defer span.End()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		log.Warn().Err(err).Msg("analysis slot unavailable, failing open")
		a.metrics.RecordAnalysis("failed_open", time.Since(start).Seconds())
		return failOpen()
	}
	defer a.sem.Release(1)

	det, err := a.classifier.Detect(ctx, image)
	if err != nil {
		log.Warn().Err(err).Msg("classifier call failed, failing open")
		a.metrics.RecordAnalysis("failed_open", time.Since(start).Seconds())
		return failOpen()
	}

	result := a.evaluate(det)

	span.SetAttributes(
		monitor.AttrFaceCount.Int(result.FaceCount),
		monitor.AttrViolations.Int(len(result.Violations)),
		monitor.AttrClean.Bool(result.IsClean),
	)

	status := "clean"
	if !result.IsClean {
		status = "violation"
	}
	a.metrics.RecordAnalysis(status, time.Since(start).Seconds())

	return result
}

func (a *Analyzer) evaluate(det *Detection) AnalysisResult {
	var violations []Violation

	faceCount := len(det.Faces)
	switch {
	case faceCount == 0:
		violations = append(violations, Violation{
			Type:        TypeNoFace,
			Description: "No face detected in frame",
		})
	case faceCount > 1:
		violations = append(violations, Violation{
			Type:        TypeMultipleFaces,
			Description: fmt.Sprintf("Multiple faces detected: %d", faceCount),
		})
	default:
		// Exactly one face: secondary checks add violations but do not
		// fail the session by themselves.
		if det.Faces[0].Sunglasses >= a.sunglassesConfidence {
			violations = append(violations, Violation{
				Type:        TypeSunglasses,
				Description: fmt.Sprintf("Sunglasses detected (%.0f%% confidence)", det.Faces[0].Sunglasses*100),
			})
		}
	}

	for _, obj := range det.Objects {
		if obj.Confidence < a.objectConfidence {
			continue
		}
		if a.isForbidden(obj.Label) {
			violations = append(violations, Violation{
				Type:        TypeForbiddenObject,
				Description: fmt.Sprintf("Forbidden object detected: %s (%.0f%% confidence)", obj.Label, obj.Confidence*100),
			})
		}
	}

	return AnalysisResult{
		IsClean:    len(violations) == 0,
		FaceCount:  faceCount,
		Violations: violations,
		Confidence: meanFaceConfidence(det.Faces),
	}
}

func (a *Analyzer) isForbidden(label string) bool {
	l := strings.ToLower(label)
	for _, f := range a.forbidden {
		if strings.Contains(l, f) {
			return true
		}
	}
	return false
}

func failOpen() AnalysisResult {
	return AnalysisResult{
		IsClean:   true,
		FaceCount: 0,
		Violations: []Violation{{
			Type:        TypeAnalysisSkipped,
			Description: "Automated analysis could not run; snapshot was not checked",
		}},
	}
}

func meanFaceConfidence(faces []Face) int {
	if len(faces) == 0 {
		return 0
	}
	var sum float64
	for _, f := range faces {
		sum += f.Confidence
	}
	return int(math.Round(sum / float64(len(faces)) * 100))
}
