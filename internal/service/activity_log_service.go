package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/jobs"
)

const activityJobType = "activity_log.write"

type activityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, int, error)
}

// ActivityLogService writes the operator activity feed off the request path.
type ActivityLogService struct {
	repo   activityLogRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewActivityLogService wires the repository behind a worker queue.
func NewActivityLogService(repo activityLogRepository, cfg jobs.QueueConfig, logger *zap.Logger) *ActivityLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ActivityLogService{repo: repo, logger: logger}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("activity-log", svc.handle, cfg)
	return svc
}

// Start launches the background writers.
func (s *ActivityLogService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending entries and stops the writers.
func (s *ActivityLogService) Stop() {
	s.queue.Stop()
}

// Record queues an entry for the given actor. When the queue cannot take it
// the entry is written inline; failures are logged and never surface to the
// caller.
func (s *ActivityLogService) Record(ctx context.Context, actor models.Actor, action, resource string, resourceID *string, details string) {
	entry := models.ActivityLog{
		ID:         uuid.NewString(),
		ActorName:  actor.Name,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IPAddress:  actor.Meta.IP,
		UserAgent:  actor.Meta.UserAgent,
	}
	if actor.ID != "" {
		id := actor.ID
		entry.ActorID = &id
	}

	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: activityJobType, Payload: entry}); err != nil {
		s.logger.Warn("activity log queue unavailable, writing inline", zap.String("action", action), zap.Error(err))
		if err := s.repo.Create(context.WithoutCancel(ctx), &entry); err != nil {
			s.logger.Warn("failed to record activity log", zap.String("action", action), zap.Error(err))
		}
	}
}

func (s *ActivityLogService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.ActivityLog)
	if !ok {
		s.logger.Error("unexpected activity log payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	return s.repo.Create(ctx, &entry)
}

// List returns activity entries with pagination metadata.
func (s *ActivityLogService) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity logs")
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
