// Package audit maintains the sync-job audit log. The trail is a
// diagnostic side channel: it observes every sync attempt's lifecycle but
// never gates one, so its own write failures are logged and swallowed.
package audit

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/timedock/internal/models"
	"gorm.io/gorm"
)

// ValidTransitions maps each job status to its valid next statuses.
// Transitions are one-directional; a finished job is never reopened.
var ValidTransitions = map[string][]string{
	models.JobWaiting: {models.JobRunning, models.JobCancelled},
	models.JobRunning: {models.JobSucceeded, models.JobFailed},
}

// Trail records sync-job lifecycle transitions.
type Trail struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewTrail creates an audit trail backed by db.
func NewTrail(db *gorm.DB, log *logrus.Logger) *Trail {
	if log == nil {
		log = logrus.New()
	}
	return &Trail{db: db, log: log}
}

// Queued appends a new waiting job and returns its id. A zero id means
// the append failed; callers proceed regardless.
func (t *Trail) Queued(queue, payload string, priority int) uint {
	job := models.SyncJob{
		QueueName: queue,
		Status:    models.JobWaiting,
		Priority:  priority,
		Payload:   payload,
	}
	if err := t.db.Create(&job).Error; err != nil {
		t.log.WithError(err).WithField("queue", queue).Error("audit: queue job")
		return 0
	}
	return job.ID
}

// ClaimOrQueue returns the oldest waiting job with the same queue and
// payload, or appends a new one. The reconciliation sweeper queues jobs
// ahead of delivery; the engine claims them here so a swept record does
// not produce a duplicate job for the same attempt.
func (t *Trail) ClaimOrQueue(queue, payload string, priority int) uint {
	var job models.SyncJob
	err := t.db.Where("queue_name = ? AND payload = ? AND status = ?", queue, payload, models.JobWaiting).
		Order("id ASC").First(&job).Error
	if err == nil {
		return job.ID
	}
	return t.Queued(queue, payload, priority)
}

// Running marks a job as picked up and bumps its attempt counter.
func (t *Trail) Running(id uint) {
	now := time.Now()
	t.transition(id, models.JobRunning, map[string]interface{}{
		"status":     models.JobRunning,
		"started_at": &now,
		"attempts":   gorm.Expr("attempts + 1"),
	})
}

// Succeeded marks a job as delivered.
func (t *Trail) Succeeded(id uint) {
	now := time.Now()
	t.transition(id, models.JobSucceeded, map[string]interface{}{
		"status":      models.JobSucceeded,
		"finished_at": &now,
	})
}

// Failed marks a job as failed with its error.
func (t *Trail) Failed(id uint, cause error) {
	now := time.Now()
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	t.transition(id, models.JobFailed, map[string]interface{}{
		"status":      models.JobFailed,
		"finished_at": &now,
		"last_error":  lastError,
	})
}

// Cancelled marks a waiting job as abandoned before it ran.
func (t *Trail) Cancelled(id uint) {
	now := time.Now()
	t.transition(id, models.JobCancelled, map[string]interface{}{
		"status":      models.JobCancelled,
		"finished_at": &now,
	})
}

// transition applies updates if the job's current status allows moving to
// next. Illegal transitions and storage failures are logged only.
func (t *Trail) transition(id uint, next string, updates map[string]interface{}) {
	if id == 0 {
		return
	}
	var job models.SyncJob
	if err := t.db.First(&job, id).Error; err != nil {
		t.log.WithError(err).WithField("job", id).Error("audit: load job")
		return
	}
	if !allowed(job.Status, next) {
		t.log.WithFields(logrus.Fields{
			"job":  id,
			"from": job.Status,
			"to":   next,
		}).Error("audit: illegal transition")
		return
	}
	if err := t.db.Model(&models.SyncJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		t.log.WithError(err).WithField("job", id).Error("audit: update job")
	}
}

func allowed(from, to string) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Filter narrows a job history listing.
type Filter struct {
	Queue  string
	Status string
	Limit  int
	Offset int
}

// List returns job history for operator inspection, newest first, plus
// the total row count for pagination.
func (t *Trail) List(f Filter) ([]models.SyncJob, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := t.db.Model(&models.SyncJob{})
	if f.Queue != "" {
		query = query.Where("queue_name = ?", f.Queue)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit: count jobs: %w", err)
	}

	var jobs []models.SyncJob
	if err := query.Order("id DESC").Limit(f.Limit).Offset(f.Offset).Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("audit: list jobs: %w", err)
	}
	return jobs, total, nil
}
