package api

import (
	"proctor-engine/internal/storage"
)

// AnalysisSummary is the client-facing slice of an analysis result.
type AnalysisSummary struct {
	IsClean    bool     `json:"isClean"`
	FaceCount  int      `json:"faceCount"`
	Violations []string `json:"violations"`
	Confidence int      `json:"confidence"`
}

// SnapshotResponse is returned after a snapshot submission.
type SnapshotResponse struct {
	Success  bool            `json:"success"`
	Key      string          `json:"key"`
	Analysis AnalysisSummary `json:"analysis"`
}

// StatsResponse aggregates engine activity over a trailing 24-hour window.
type StatsResponse struct {
	ActiveSessions   int                 `json:"activeSessions"`
	RecentViolations []storage.TypeCount `json:"recentViolations"`
}

// ErrorResponse is returned for API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Database   bool   `json:"database"`
	Classifier bool   `json:"classifier"`
	Uptime     string `json:"uptime"`
}
