package models

import "time"

// Payslip is a monthly pay statement stored for an employee.
type Payslip struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Month      int       `db:"month" json:"month"`
	Year       int       `db:"year" json:"year"`
	FilePath   string    `db:"file_path" json:"-"`
	FileName   string    `db:"file_name" json:"file_name"`
	UploadedBy *string   `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PayslipPeriod identifies an already stored payslip.
type PayslipPeriod struct {
	EmployeeID string `db:"employee_id"`
	Month      int    `db:"month"`
	Year       int    `db:"year"`
}
