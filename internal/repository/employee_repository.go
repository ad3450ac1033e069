package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

const employeeColumns = `id, name, email, matricula, cpf, role, status, birth_date, emergency_phone, needs_password_setup, created_at, updated_at`

// ErrDuplicateEmployee marks an insert rejected by a unique index.
var ErrDuplicateEmployee = errors.New("employee email or matricula already in use")

// EmployeeRepository provides database access for the employee roster.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository creates a new instance of EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID returns an employee by identifier.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 LIMIT 1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by id: %w", err)
	}
	return &employee, nil
}

// List returns employees based on filters with total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	baseQuery := `FROM employees WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d OR matricula LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	allowedSorts := map[string]bool{
		"name":       true,
		"email":      true,
		"matricula":  true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", employeeColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	return employees, total, nil
}

// ListRoster returns the identity columns of every employee, optionally
// restricted to active ones.
func (r *EmployeeRepository) ListRoster(ctx context.Context, activeOnly bool) ([]models.Employee, error) {
	query := `SELECT id, name, email, matricula, status FROM employees`
	args := []interface{}{}
	if activeOnly {
		query += ` WHERE status = $1`
		args = append(args, models.EmployeeStatusActive)
	}
	query += ` ORDER BY created_at`

	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return employees, nil
}

// HighestMatricula returns the largest numeric matricula across all employees.
func (r *EmployeeRepository) HighestMatricula(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(MAX(CAST(matricula AS BIGINT)), 0) FROM employees WHERE matricula ~ '^[0-9]{1,18}$'`
	var highest int64
	if err := r.db.GetContext(ctx, &highest, query); err != nil {
		return 0, fmt.Errorf("highest matricula: %w", err)
	}
	return int(highest), nil
}

// UpdateStatus sets the status of an employee. It returns sql.ErrNoRows when
// the employee does not exist and ErrDuplicateEmployee when reactivating would
// collide with another active employee.
func (r *EmployeeRepository) UpdateStatus(ctx context.Context, id string, status models.EmployeeStatus) error {
	const query = `UPDATE employees SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateEmployee, pqErr.Constraint)
		}
		return fmt.Errorf("update employee status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update employee status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateMany inserts employees in one transaction. A row that violates a
// unique index is rolled back to its savepoint and reported in the returned
// slice, aligned with the input; other rows still commit. Any other failure
// aborts the whole batch.
func (r *EmployeeRepository) CreateMany(ctx context.Context, employees []models.Employee) ([]error, error) {
	rowErrs := make([]error, len(employees))
	if len(employees) == 0 {
		return rowErrs, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin employee import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO employees (id, name, email, matricula, cpf, role, status, birth_date, emergency_phone, needs_password_setup, created_at, updated_at) VALUES (:id, :name, :email, :matricula, :cpf, :role, :status, :birth_date, :emergency_phone, :needs_password_setup, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range employees {
		employee := &employees[i]
		if employee.ID == "" {
			employee.ID = uuid.NewString()
		}
		if employee.CreatedAt.IsZero() {
			employee.CreatedAt = now
		}
		employee.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `SAVEPOINT employee_row`); err != nil {
			return nil, fmt.Errorf("savepoint employee row: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, query, employee); err != nil {
			var pqErr *pq.Error
			if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
				return nil, fmt.Errorf("create employee: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT employee_row`); err != nil {
				return nil, fmt.Errorf("rollback employee row: %w", err)
			}
			rowErrs[i] = fmt.Errorf("%w: %s", ErrDuplicateEmployee, pqErr.Constraint)
			continue
		}
		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT employee_row`); err != nil {
			return nil, fmt.Errorf("release employee row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit employee import: %w", err)
	}
	return rowErrs, nil
}
