package dialogue

import (
	"context"
	"time"
)

// A SummaryJob asks the worker to generate the summary for a session that
// was force-finalized with messages still in it (a new session was opened
// while this one was unfinished).
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

type SummaryJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID

	SessionID string `gorm:"size:26;index;not null"`
	UserID    uint64 `gorm:"index;not null"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SummaryJob) TableName() string { return "summary_jobs" }

func (r *Repo) CreateSummaryJob(ctx context.Context, job *SummaryJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetSummaryJob(ctx context.Context, id string) (*SummaryJob, error) {
	var j SummaryJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) MarkSummaryJobRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&SummaryJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkSummaryJobSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&SummaryJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkSummaryJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&SummaryJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}
