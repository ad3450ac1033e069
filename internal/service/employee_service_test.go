package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/repository"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

type employeeStoreStub struct {
	mu          sync.Mutex
	employees   []models.Employee
	highest     int
	listErr     error
	rosterErr   error
	updateErr   error
	createErr   error
	rejectEmail map[string]bool
	updates     map[string]models.EmployeeStatus
	created     []models.Employee
	createCalls int
	lastFilter  models.EmployeeFilter
}

func (s *employeeStoreStub) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return s.employees, len(s.employees), nil
}

func (s *employeeStoreStub) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	for i := range s.employees {
		if s.employees[i].ID == id {
			employee := s.employees[i]
			return &employee, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *employeeStoreStub) UpdateStatus(ctx context.Context, id string, status models.EmployeeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.updates == nil {
		s.updates = map[string]models.EmployeeStatus{}
	}
	for i := range s.employees {
		if s.employees[i].ID == id {
			s.employees[i].Status = status
			s.updates[id] = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *employeeStoreStub) ListRoster(ctx context.Context, activeOnly bool) ([]models.Employee, error) {
	if s.rosterErr != nil {
		return nil, s.rosterErr
	}
	out := make([]models.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if activeOnly && e.Status != models.EmployeeStatusActive {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *employeeStoreStub) HighestMatricula(ctx context.Context) (int, error) {
	return s.highest, nil
}

func (s *employeeStoreStub) CreateMany(ctx context.Context, employees []models.Employee) ([]error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	rowErrs := make([]error, len(employees))
	for i := range employees {
		if s.rejectEmail[employees[i].Email] {
			rowErrs[i] = fmt.Errorf("%w: employees_email_active_key", repository.ErrDuplicateEmployee)
			continue
		}
		employees[i].ID = fmt.Sprintf("new-%d", len(s.created)+1)
		s.created = append(s.created, employees[i])
		s.employees = append(s.employees, employees[i])
	}
	return rowErrs, nil
}

type recordedActivity struct {
	Actor      models.Actor
	Action     string
	Resource   string
	ResourceID string
	Details    string
}

type activityRecorderStub struct {
	mu      sync.Mutex
	entries []recordedActivity
}

func (s *activityRecorderStub) Record(ctx context.Context, actor models.Actor, action, resource string, resourceID *string, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := recordedActivity{Actor: actor, Action: action, Resource: resource, Details: details}
	if resourceID != nil {
		entry.ResourceID = *resourceID
	}
	s.entries = append(s.entries, entry)
}

func testActor() models.Actor {
	return models.Actor{ID: "op-1", Name: "Operadora RH", Meta: models.RequestMeta{IP: "10.0.0.1", UserAgent: "test"}}
}

func TestEmployeeServiceListAppliesPaginationDefaults(t *testing.T) {
	store := &employeeStoreStub{employees: []models.Employee{{ID: "e1", Name: "Ana"}}}
	svc := NewEmployeeService(store, &activityRecorderStub{}, nil, nil)

	employees, pagination, err := svc.List(context.Background(), models.EmployeeFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, employees, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestEmployeeServiceListWrapsRepositoryError(t *testing.T) {
	store := &employeeStoreStub{listErr: errors.New("boom")}
	svc := NewEmployeeService(store, &activityRecorderStub{}, nil, nil)

	_, _, err := svc.List(context.Background(), models.EmployeeFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceGetNotFound(t *testing.T) {
	svc := NewEmployeeService(&employeeStoreStub{}, &activityRecorderStub{}, nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceSetStatusRecordsActivity(t *testing.T) {
	store := &employeeStoreStub{employees: []models.Employee{{ID: "e1", Name: "Ana Souza", Status: models.EmployeeStatusActive}}}
	activity := &activityRecorderStub{}
	svc := NewEmployeeService(store, activity, nil, nil)

	employee, err := svc.SetStatus(context.Background(), testActor(), "e1", UpdateEmployeeStatusRequest{Status: models.EmployeeStatusInactive})
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeStatusInactive, employee.Status)
	assert.Equal(t, models.EmployeeStatusInactive, store.updates["e1"])

	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityEmployeeStatusUpdate, activity.entries[0].Action)
	assert.Equal(t, "Desativou o usuário Ana Souza.", activity.entries[0].Details)
	assert.Equal(t, "e1", activity.entries[0].ResourceID)
}

func TestEmployeeServiceSetStatusUnchangedIsNoop(t *testing.T) {
	store := &employeeStoreStub{employees: []models.Employee{{ID: "e1", Status: models.EmployeeStatusActive}}}
	activity := &activityRecorderStub{}
	svc := NewEmployeeService(store, activity, nil, nil)

	_, err := svc.SetStatus(context.Background(), testActor(), "e1", UpdateEmployeeStatusRequest{Status: models.EmployeeStatusActive})
	require.NoError(t, err)
	assert.Empty(t, store.updates)
	assert.Empty(t, activity.entries)
}

func TestEmployeeServiceSetStatusValidation(t *testing.T) {
	svc := NewEmployeeService(&employeeStoreStub{}, &activityRecorderStub{}, nil, nil)

	_, err := svc.SetStatus(context.Background(), testActor(), "e1", UpdateEmployeeStatusRequest{Status: "DEMITIDO"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceReactivationCollision(t *testing.T) {
	store := &employeeStoreStub{
		employees: []models.Employee{{ID: "e1", Status: models.EmployeeStatusInactive}},
		updateErr: fmt.Errorf("%w: employees_email_active_key", repository.ErrDuplicateEmployee),
	}
	svc := NewEmployeeService(store, &activityRecorderStub{}, nil, nil)

	_, err := svc.SetStatus(context.Background(), testActor(), "e1", UpdateEmployeeStatusRequest{Status: models.EmployeeStatusActive})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrConflict.Status, appErr.Status)
}
