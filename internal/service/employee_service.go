package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/repository"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

type employeeRepository interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	UpdateStatus(ctx context.Context, id string, status models.EmployeeStatus) error
}

type activityRecorder interface {
	Record(ctx context.Context, actor models.Actor, action, resource string, resourceID *string, details string)
}

// UpdateEmployeeStatusRequest is the payload for activating or deactivating an employee.
type UpdateEmployeeStatusRequest struct {
	Status models.EmployeeStatus `json:"status" validate:"required,oneof=ATIVO INATIVO"`
}

// EmployeeService handles roster browsing and single status changes.
type EmployeeService struct {
	repo      employeeRepository
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService creates an instance of EmployeeService.
func NewEmployeeService(repo employeeRepository, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EmployeeService{repo: repo, activity: activity, validator: validate, logger: logger}
}

// List returns paginated employees and pagination metadata.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error) {
	employees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return employees, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single employee.
func (s *EmployeeService) Get(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

// SetStatus activates or deactivates one employee.
func (s *EmployeeService) SetStatus(ctx context.Context, actor models.Actor, id string, req UpdateEmployeeStatusRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	employee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if employee.Status == req.Status {
		return employee, nil
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		case errors.Is(err, repository.ErrDuplicateEmployee):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "another active employee already uses this email or matricula")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee status")
	}
	employee.Status = req.Status

	verb := "Desativou"
	if req.Status == models.EmployeeStatusActive {
		verb = "Ativou"
	}
	s.activity.Record(ctx, actor, models.ActivityEmployeeStatusUpdate, "employees", &employee.ID,
		fmt.Sprintf("%s o usuário %s.", verb, employee.Name))
	s.logger.Info("employee status updated", zap.String("employee_id", id), zap.String("status", string(req.Status)))

	return employee, nil
}
