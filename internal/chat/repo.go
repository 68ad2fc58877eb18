package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	if s.LastActivity.IsZero() {
		s.LastActivity = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(s).Error
}

// GetSessionByAgentID looks up a session by (owner, runtime session id).
func (r *Repo) GetSessionByAgentID(ctx context.Context, userID uint64, agentSessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND agent_session_id = ?", userID, agentSessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns a user's sessions, most recently active first.
func (r *Repo) ListSessions(ctx context.Context, userID uint64, skip, limit int) ([]Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var sessions []Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity DESC").
		Offset(skip).
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// TouchLastActivity bumps a session's last-activity timestamp
// (last-writer-wins; concurrent turns are not serialized here).
func (r *Repo) TouchLastActivity(ctx context.Context, sessionID uint64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{"last_activity": now, "updated_at": now}).Error
}

func (r *Repo) UpdateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *Repo) DeleteSession(ctx context.Context, sessionID uint64) error {
	return r.db.WithContext(ctx).Delete(&Session{}, sessionID).Error
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id, resultJSON, sessionID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_messages":   resultJSON,
			"result_session_id": sessionID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          JobFailed,
			"error":           errMsg,
			"result_messages": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id,
// idempotency_key) already exists, it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
