package models

import "time"

// Run statuses recorded in the sync log.
const (
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
)

// SyncStats counts the outcomes of one reconciliation run.
type SyncStats struct {
	Added   int `firestore:"added" json:"added"`
	Updated int `firestore:"updated" json:"updated"`
	Removed int `firestore:"removed" json:"removed"`
	Skipped int `firestore:"skipped" json:"skipped"`
}

// SyncRun is the audit record of one pipeline invocation. Exactly one is
// written per run, success or failure, and it is never mutated afterwards.
type SyncRun struct {
	ID          string    `firestore:"-" json:"id"`
	TriggeredBy string    `firestore:"triggeredBy" json:"triggeredBy"`
	Timestamp   time.Time `firestore:"timestamp" json:"timestamp"`
	Status      string    `firestore:"status" json:"status"`
	Stats       SyncStats `firestore:"stats" json:"stats"`
	Error       string    `firestore:"error,omitempty" json:"error,omitempty"`
}
