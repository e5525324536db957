package storage

import "time"

// ViolationRecord is one persisted violation log row. A row aggregates the
// full violation list from one analysis under a single timestamp; it is
// append-only and outlives the session it was recorded for.
type ViolationRecord struct {
	ID           string    `json:"id" db:"id"`
	SessionID    string    `json:"session_id" db:"session_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	ExamID       string    `json:"exam_id" db:"exam_id"`
	Types        []string  `json:"types" db:"types"`
	Descriptions []string  `json:"descriptions" db:"descriptions"`
	FaceCount    int       `json:"face_count" db:"face_count"`
	SnapshotKey  string    `json:"snapshot_key,omitempty" db:"snapshot_key"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ViolationFilter provides criteria for querying the violation log.
type ViolationFilter struct {
	ExamID string
	UserID string
	Since  *time.Time
	Limit  int
	Offset int
}

// TypeCount is one row of the violations-by-type statistics query.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}
