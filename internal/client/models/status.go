package models

import "time"

// PassState is the state of the most recent sync pass.
type PassState string

const (
	PassIdle      PassState = "IDLE"
	PassRunning   PassState = "RUNNING"
	PassSucceeded PassState = "SUCCEEDED"
	PassFailed    PassState = "FAILED"
)

// SyncStatus is the user-visible summary of synchronization.
type SyncStatus struct {
	State         PassState `json:"state"`
	Syncing       bool      `json:"syncing"`
	UnsyncedCount int       `json:"unsynced_count"`
	UploadedBytes int64     `json:"uploaded_bytes"`
	TotalBytes    int64     `json:"total_bytes"`
	UploadedFiles int       `json:"uploaded_files"`
	TotalFiles    int       `json:"total_files"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
}

// Progress returns upload progress in [0,1], preferring bytes over files.
// It returns nil when neither total is known.
func (s SyncStatus) Progress() *float64 {
	var p float64
	switch {
	case s.TotalBytes > 0:
		p = float64(s.UploadedBytes) / float64(s.TotalBytes)
	case s.TotalFiles > 0:
		p = float64(s.UploadedFiles) / float64(s.TotalFiles)
	default:
		return nil
	}
	p = min(max(p, 0), 1)
	return &p
}
