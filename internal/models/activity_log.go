package models

import "time"

// Activity actions recorded in the activity log.
const (
	ActivityEmployeeImport       = "IMPORTACAO_USUARIOS"
	ActivityEmployeeStatusUpdate = "ATUALIZACAO_STATUS_USUARIO"
	ActivityPayslipBatch         = "LANCAMENTO_CONTRACHEQUE"
)

// ActivityLog is an operator action shown in the HR activity feed.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	ActorName  string    `db:"actor_name" json:"actor_name"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    string    `db:"details" json:"details"`
	Metadata   []byte    `db:"metadata" json:"metadata,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ActivityLogFilter narrows activity log listings.
type ActivityLogFilter struct {
	Action   string
	ActorID  string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// RequestMeta carries caller details recorded alongside activity entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Actor is the authenticated operator behind a mutation.
type Actor struct {
	ID   string
	Name string
	Meta RequestMeta
}
