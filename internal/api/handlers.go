package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"proctor-engine/internal/engine"
	"proctor-engine/internal/monitor"
	"proctor-engine/internal/storage"
	"proctor-engine/internal/vision"
)

// statsWindow is the trailing window for the violations-by-type query.
const statsWindow = 24 * time.Hour

type Handlers struct {
	coordinator *engine.Coordinator
	analyzer    *vision.Analyzer
	snapshots   *storage.SnapshotStore
	db          *storage.DB
	metrics     *monitor.Metrics
	maxSnapshot int64
}

func NewHandlers(coordinator *engine.Coordinator, analyzer *vision.Analyzer, snapshots *storage.SnapshotStore, db *storage.DB, metrics *monitor.Metrics, maxSnapshot int64) *Handlers {
	return &Handlers{
		coordinator: coordinator,
		analyzer:    analyzer,
		snapshots:   snapshots,
		db:          db,
		metrics:     metrics,
		maxSnapshot: maxSnapshot,
	}
}

// HandleSnapshot accepts a snapshot image for one session, stores it, runs
// the violation pipeline and returns the analysis. Violations are recorded
// and broadcast only when the session is known; analysis still runs and is
// returned either way.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxSnapshot); err != nil {
		writeError(w, "invalid multipart form: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, "image field is required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}
	defer file.Close()

	if header.Size > h.maxSnapshot {
		writeError(w, "snapshot exceeds size limit", "PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, r)
		return
	}

	image, err := io.ReadAll(io.LimitReader(file, h.maxSnapshot+1))
	if err != nil {
		writeError(w, "reading image failed", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}
	if int64(len(image)) > h.maxSnapshot {
		writeError(w, "snapshot exceeds size limit", "PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, r)
		return
	}

	sessionID := r.FormValue("sessionId")
	examID := r.FormValue("examId")
	if examID == "" {
		writeError(w, "examId is required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	h.metrics.SnapshotSizeBytes.Observe(float64(len(image)))

	key, err := h.snapshots.Save(image)
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("snapshot save failed")
		writeError(w, "snapshot storage failed", "STORAGE_FAILED", http.StatusInternalServerError, r)
		return
	}

	result := h.analyzer.Analyze(r.Context(), image)

	if len(result.Violations) > 0 && sessionID != "" {
		h.coordinator.RecordViolation(sessionID, result.Types(), result.Descriptions(), result.FaceCount, key)
	}

	writeJSON(w, http.StatusOK, SnapshotResponse{
		Success: true,
		Key:     key,
		Analysis: AnalysisSummary{
			IsClean:    result.IsClean,
			FaceCount:  result.FaceCount,
			Violations: result.Descriptions(),
			Confidence: result.Confidence,
		},
	})
}

// HandleListSessions returns the active sessions for the admin overview.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coordinator.Registry().ListActive())
}

// HandleListViolations queries the persisted violation log.
func (h *Handlers) HandleListViolations(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, "database not configured", "DB_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	filter := storage.ViolationFilter{
		ExamID: r.URL.Query().Get("examId"),
		UserID: r.URL.Query().Get("userId"),
		Limit:  100,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	records, err := h.db.ListViolations(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("violation query failed")
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}
	if records == nil {
		records = []storage.ViolationRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

// HandleStats reports active-session count and violation counts by type over
// the trailing 24-hour window.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		ActiveSessions:   h.coordinator.Registry().Len(),
		RecentViolations: []storage.TypeCount{},
	}

	if h.db != nil {
		stats, err := h.db.ViolationStats(r.Context(), statsWindow)
		if err != nil {
			log.Error().Err(err).Msg("stats query failed")
			writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
			return
		}
		if stats != nil {
			resp.RecentViolations = stats
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, msg, code string, status int, r *http.Request) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	}
	writeJSON(w, status, resp)
}
