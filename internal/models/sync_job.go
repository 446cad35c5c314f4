package models

import "time"

// Sync job queue names.
const (
	QueueTimerRetry    = "timer_retry"
	QueueTimeSlotRetry = "time_slot_retry"
	QueueScreenshot    = "screenshot"
)

// Sync job statuses.
const (
	JobWaiting   = "waiting"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// SyncJob is a diagnostic record of one sync attempt's lifecycle. Jobs are
// append-only audit data: a finished job is never reopened, a retried
// record gets a fresh job.
type SyncJob struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	QueueName string `gorm:"size:32;not null;index"`
	Status    string `gorm:"size:16;default:waiting;index"`
	Attempts  int    `gorm:"default:0"`
	Priority  int    `gorm:"default:0"`
	Payload   string `gorm:"type:text"`
	LastError string `gorm:"type:text"`

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Finished reports whether the job has reached a terminal status.
func (j *SyncJob) Finished() bool {
	switch j.Status {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	}
	return false
}
