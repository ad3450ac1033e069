package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

func TestListPayslipPeriods(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayslipRepository(db)

	rows := sqlmock.NewRows([]string{"employee_id", "month", "year"}).AddRow("e1", 3, 2024)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT employee_id, month, year FROM payslips WHERE employee_id = ANY($1)")).
		WillReturnRows(rows)

	periods, err := repo.ListPeriods(context.Background(), []string{"e1", "e2"})
	require.NoError(t, err)
	assert.Equal(t, []models.PayslipPeriod{{EmployeeID: "e1", Month: 3, Year: 2024}}, periods)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPayslipPeriodsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayslipRepository(db)

	periods, err := repo.ListPeriods(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, periods)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPayslips(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayslipRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("(?s)INSERT INTO payslips.*ON CONFLICT \\(employee_id, month, year\\) DO UPDATE").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payslips").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertMany(context.Background(), []models.Payslip{
		{EmployeeID: "e1", Month: 1, Year: 2024, FilePath: "e1/2024-01.pdf", FileName: "001001-01-2024.pdf"},
		{EmployeeID: "e2", Month: 1, Year: 2024, FilePath: "e2/2024-01.pdf", FileName: "001002-01-2024.pdf"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPayslipsRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayslipRepository(db)

	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payslips").WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.UpsertMany(context.Background(), []models.Payslip{{EmployeeID: "e1", Month: 1, Year: 2024}})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
