package constants

// JobStatus is the canonical status for rows in scan_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"   // upload accepted, pipeline in progress
	JobStatusExtracted JobStatus = "EXTRACTED" // scores extracted, awaiting human review
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)

// ReviewConfidenceThreshold: scans scoring below this are marked needs_review.
const ReviewConfidenceThreshold = 0.60
