package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleHR       UserRole = "RH"
	RoleEmployee UserRole = "FUNCIONARIO"
)

// EmployeeStatus is the lifecycle state of an employee record.
type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "ATIVO"
	EmployeeStatusInactive EmployeeStatus = "INATIVO"
)

// Employee represents a row in the employees table.
type Employee struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Email              string         `db:"email" json:"email"`
	Matricula          *string        `db:"matricula" json:"matricula,omitempty"`
	CPF                *string        `db:"cpf" json:"cpf,omitempty"`
	Role               UserRole       `db:"role" json:"role"`
	Status             EmployeeStatus `db:"status" json:"status"`
	BirthDate          *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	EmergencyPhone     *string        `db:"emergency_phone" json:"emergency_phone,omitempty"`
	NeedsPasswordSetup bool           `db:"needs_password_setup" json:"needs_password_setup"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// EmployeeFilter captures filtering criteria for listing employees.
type EmployeeFilter struct {
	Status    *EmployeeStatus
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
