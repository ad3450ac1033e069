package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/jobs"
)

type activityLogRepoStub struct {
	mu         sync.Mutex
	created    []models.ActivityLog
	lastFilter models.ActivityLogFilter
	listErr    error
}

func (s *activityLogRepoStub) Create(ctx context.Context, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *entry)
	return nil
}

func (s *activityLogRepoStub) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, int, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return s.created, len(s.created), nil
}

func (s *activityLogRepoStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func TestActivityLogServiceRecordsThroughQueue(t *testing.T) {
	repo := &activityLogRepoStub{}
	svc := NewActivityLogService(repo, jobs.QueueConfig{Workers: 1, BufferSize: 4, RetryDelay: 10 * time.Millisecond}, nil)
	svc.Start(context.Background())

	resourceID := "session-1"
	svc.Record(context.Background(), testActor(), models.ActivityEmployeeImport, "employees", &resourceID, "Importou 3 novo(s) usuário(s).")
	svc.Stop()

	require.Equal(t, 1, repo.count())
	entry := repo.created[0]
	assert.Equal(t, models.ActivityEmployeeImport, entry.Action)
	assert.Equal(t, "Operadora RH", entry.ActorName)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "op-1", *entry.ActorID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, "session-1", *entry.ResourceID)
}

func TestActivityLogServiceWritesInlineWhenQueueStopped(t *testing.T) {
	repo := &activityLogRepoStub{}
	svc := NewActivityLogService(repo, jobs.QueueConfig{}, nil)

	svc.Record(context.Background(), models.Actor{Name: "sistema"}, models.ActivityPayslipBatch, "payslips", nil, "Lançou 1 contracheque(s) em lote.")

	require.Equal(t, 1, repo.count())
	assert.Nil(t, repo.created[0].ActorID)
}

func TestActivityLogServiceListDefaults(t *testing.T) {
	repo := &activityLogRepoStub{created: []models.ActivityLog{{ID: "a1"}}}
	svc := NewActivityLogService(repo, jobs.QueueConfig{}, nil)

	entries, pagination, err := svc.List(context.Background(), models.ActivityLogFilter{Page: 0, PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, repo.lastFilter.Page)
	assert.Equal(t, 20, repo.lastFilter.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)

	repo.listErr = assert.AnError
	_, _, err = svc.List(context.Background(), models.ActivityLogFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
