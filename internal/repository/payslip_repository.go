package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

const payslipColumns = `id, employee_id, month, year, file_path, file_name, uploaded_by, created_at, updated_at`

// PayslipRepository persists payslip metadata.
type PayslipRepository struct {
	db *sqlx.DB
}

// NewPayslipRepository creates a new payslip repository.
func NewPayslipRepository(db *sqlx.DB) *PayslipRepository {
	return &PayslipRepository{db: db}
}

// ListPeriods returns the stored periods for the given employees.
func (r *PayslipRepository) ListPeriods(ctx context.Context, employeeIDs []string) ([]models.PayslipPeriod, error) {
	if len(employeeIDs) == 0 {
		return []models.PayslipPeriod{}, nil
	}
	const query = `SELECT employee_id, month, year FROM payslips WHERE employee_id = ANY($1)`
	var periods []models.PayslipPeriod
	if err := r.db.SelectContext(ctx, &periods, query, pq.Array(employeeIDs)); err != nil {
		return nil, fmt.Errorf("list payslip periods: %w", err)
	}
	return periods, nil
}

// UpsertMany writes payslips in one transaction, replacing the file of any
// period that already exists.
func (r *PayslipRepository) UpsertMany(ctx context.Context, payslips []models.Payslip) error {
	if len(payslips) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payslip upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO payslips (id, employee_id, month, year, file_path, file_name, uploaded_by, created_at, updated_at)
VALUES (:id, :employee_id, :month, :year, :file_path, :file_name, :uploaded_by, :created_at, :updated_at)
ON CONFLICT (employee_id, month, year) DO UPDATE SET file_path = EXCLUDED.file_path, file_name = EXCLUDED.file_name, uploaded_by = EXCLUDED.uploaded_by, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for i := range payslips {
		payslip := &payslips[i]
		if payslip.ID == "" {
			payslip.ID = uuid.NewString()
		}
		if payslip.CreatedAt.IsZero() {
			payslip.CreatedAt = now
		}
		payslip.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, payslip); err != nil {
			return fmt.Errorf("upsert payslip %s %02d/%d: %w", payslip.EmployeeID, payslip.Month, payslip.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payslip upsert: %w", err)
	}
	return nil
}

// FindByID returns a payslip by identifier.
func (r *PayslipRepository) FindByID(ctx context.Context, id string) (*models.Payslip, error) {
	query := `SELECT ` + payslipColumns + ` FROM payslips WHERE id = $1 LIMIT 1`
	var payslip models.Payslip
	if err := r.db.GetContext(ctx, &payslip, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payslip by id: %w", err)
	}
	return &payslip, nil
}

// ListByEmployee returns the payslips of one employee, newest period first.
func (r *PayslipRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.Payslip, error) {
	query := `SELECT ` + payslipColumns + ` FROM payslips WHERE employee_id = $1 ORDER BY year DESC, month DESC`
	var payslips []models.Payslip
	if err := r.db.SelectContext(ctx, &payslips, query, employeeID); err != nil {
		return nil, fmt.Errorf("list payslips: %w", err)
	}
	return payslips, nil
}
