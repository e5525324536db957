package vision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"proctor-engine/internal/config"
	"proctor-engine/internal/monitor"
)

// mockClassifier returns a canned detection or error.
type mockClassifier struct {
	det *Detection
	err error
}

func (m *mockClassifier) Detect(_ context.Context, _ []byte) (*Detection, error) {
	return m.det, m.err
}

func newTestAnalyzer(c Classifier) *Analyzer {
	cfg := config.DefaultConfig().Classifier
	return NewAnalyzer(c, cfg, monitor.NewMetrics())
}

func hasViolation(r AnalysisResult, vtype, substr string) bool {
	for _, v := range r.Violations {
		if v.Type == vtype && strings.Contains(v.Description, substr) {
			return true
		}
	}
	return false
}

func TestAnalyzeCleanFrame(t *testing.T) {
	a := newTestAnalyzer(&mockClassifier{det: &Detection{
		Faces: []Face{{Confidence: 0.97}},
	}})

	result := a.Analyze(context.Background(), []byte("img"))

	if !result.IsClean {
		t.Errorf("IsClean = false for a single clean face: %+v", result.Violations)
	}
	if result.FaceCount != 1 {
		t.Errorf("FaceCount = %d, want 1", result.FaceCount)
	}
	if result.Confidence != 97 {
		t.Errorf("Confidence = %d, want 97", result.Confidence)
	}
}

func TestAnalyzeMultipleFaces(t *testing.T) {
	a := newTestAnalyzer(&mockClassifier{det: &Detection{
		Faces: []Face{{Confidence: 0.9}, {Confidence: 0.8}},
	}})

	result := a.Analyze(context.Background(), []byte("img"))

	if result.IsClean {
		t.Error("IsClean = true with two faces")
	}
	if !hasViolation(result, TypeMultipleFaces, "Multiple faces detected: 2") {
		t.Errorf("missing multiple-faces violation: %+v", result.Violations)
	}
}

func TestAnalyzeNoFaceAndForbiddenObject(t *testing.T) {
	a := newTestAnalyzer(&mockClassifier{det: &Detection{
		Objects: []Object{{Label: "Cell Phone", Confidence: 0.9}},
	}})

	result := a.Analyze(context.Background(), []byte("img"))

	if result.IsClean {
		t.Error("IsClean = true with no face and a phone in frame")
	}
	if !hasViolation(result, TypeNoFace, "No face detected") {
		t.Errorf("missing no-face violation: %+v", result.Violations)
	}
	if !hasViolation(result, TypeForbiddenObject, "Cell Phone") {
		t.Errorf("missing forbidden-object violation for Cell Phone: %+v", result.Violations)
	}
	if len(result.Violations) != 2 {
		t.Errorf("got %d violations, want 2", len(result.Violations))
	}
}

func TestAnalyzeObjectBelowThresholdIgnored(t *testing.T) {
	a := newTestAnalyzer(&mockClassifier{det: &Detection{
		Faces:   []Face{{Confidence: 0.95}},
		Objects: []Object{{Label: "book", Confidence: 0.3}},
	}})

	result := a.Analyze(context.Background(), []byte("img"))

	if !result.IsClean {
		t.Errorf("low-confidence object produced a violation: %+v", result.Violations)
	}
}

func TestAnalyzeNonForbiddenObjectIgnored(t *testing.T) {
	a := newTestAnalyzer(&mockClassifier{det: &Detection{
		Faces:   []Face{{Confidence: 0.95}},
		Objects: []Object{{Label: "coffee mug", Confidence: 0.99}},
	}})

	result := a.Analyze(context.Background(), []byte("img"))

	if !result.IsClean {
		t.Errorf("allowed object produced a violation: %+v", result.Violations)
	}
}

func TestAnalyzeSunglassesSecondaryCheck(t *testing.T) {
	a := newTestAnalyzer(&mockClassifier{det: &Detection{
		Faces: []Face{{Confidence: 0.95, Sunglasses: 0.9}},
	}})

	result := a.Analyze(context.Background(), []byte("img"))

	if result.IsClean {
		t.Error("IsClean = true with confident sunglasses detection")
	}
	if !hasViolation(result, TypeSunglasses, "Sunglasses") {
		t.Errorf("missing sunglasses violation: %+v", result.Violations)
	}
}

func TestAnalyzeSunglassesBelowThreshold(t *testing.T) {
	a := newTestAnalyzer(&mockClassifier{det: &Detection{
		Faces: []Face{{Confidence: 0.95, Sunglasses: 0.4}},
	}})

	result := a.Analyze(context.Background(), []byte("img"))

	if !result.IsClean {
		t.Errorf("weak sunglasses signal produced a violation: %+v", result.Violations)
	}
}

// The pipeline fails open when the classifier is unavailable: a clean
// result with exactly one informational entry. The exam continues.
func TestAnalyzeFailsOpenOnClassifierError(t *testing.T) {
	tests := []struct {
		name string
		c    Classifier
	}{
		{"classifier errors", &mockClassifier{err: errors.New("connection refused")}},
		{"not configured", NewHTTPClassifier("", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(tt.c)
			result := a.Analyze(context.Background(), []byte("img"))

			if !result.IsClean {
				t.Error("IsClean = false, fail-open must not block the exam")
			}
			if len(result.Violations) != 1 {
				t.Fatalf("got %d violations, want exactly 1 informational entry", len(result.Violations))
			}
			if result.Violations[0].Type != TypeAnalysisSkipped {
				t.Errorf("type = %q, want %q", result.Violations[0].Type, TypeAnalysisSkipped)
			}
		})
	}
}

func TestResultAccessors(t *testing.T) {
	r := AnalysisResult{Violations: []Violation{
		{Type: "no_face", Description: "No face detected in frame"},
		{Type: "forbidden_object", Description: "Forbidden object detected: phone (90% confidence)"},
	}}

	types := r.Types()
	descs := r.Descriptions()
	if len(types) != 2 || types[0] != "no_face" || types[1] != "forbidden_object" {
		t.Errorf("Types() = %v", types)
	}
	if len(descs) != 2 || !strings.HasPrefix(descs[1], "Forbidden object") {
		t.Errorf("Descriptions() = %v", descs)
	}
}
