// Package importer reconciles bulk employee uploads against the live roster.
//
// Rows flow through a fixed pipeline: normalization, classification against a
// uniqueness index, operator resolution of conflicts, and a commit that applies
// deactivations before creating the surviving candidates.
package importer

import "time"

// DefaultShortIDWidth is the number of digits in an employee matricula.
const DefaultShortIDWidth = 6

// Roster status values shared with the employees table.
const (
	StatusActive   = "ATIVO"
	StatusInactive = "INATIVO"
)

// KeyKind identifies which unique key produced a conflict.
type KeyKind string

const (
	KeyShortID KeyKind = "matricula"
	KeyEmail   KeyKind = "email"
)

// Reason classifies a row-level failure.
type Reason string

const (
	ReasonMissingField       Reason = "MISSING_FIELD"
	ReasonInvalidEmail       Reason = "INVALID_EMAIL_FORMAT"
	ReasonInvalidShortID     Reason = "INVALID_SHORT_ID"
	ReasonShortIDExhausted   Reason = "SHORT_ID_EXHAUSTED"
	ReasonDuplicateEmail     Reason = "DUPLICATE_EMAIL_IN_FILE"
	ReasonDuplicateShortID   Reason = "DUPLICATE_SHORT_ID_IN_FILE"
	ReasonDeactivationFailed Reason = "DEACTIVATION_FAILED"
	ReasonCreationFailed     Reason = "CREATION_FAILED"
	ReasonUnreadableFile     Reason = "UNREADABLE_FILE"
	ReasonRosterUnavailable  Reason = "ROSTER_UNAVAILABLE"
	ReasonInvalidFilename    Reason = "INVALID_FILENAME"
	ReasonUnsupportedFile    Reason = "UNSUPPORTED_FILE"
	ReasonUnknownEmployee    Reason = "UNKNOWN_EMPLOYEE"
	ReasonInvalidPeriod      Reason = "INVALID_PERIOD"
	ReasonDuplicatePeriod    Reason = "DUPLICATE_PERIOD_IN_BATCH"
	ReasonPayslipWriteFailed Reason = "PAYSLIP_WRITE_FAILED"
)

// RawRow is one record read from an uploaded sheet. Line is the 1-based
// spreadsheet line number, so the first data row under the header is 2.
type RawRow struct {
	Line   int               `json:"line"`
	Fields map[string]string `json:"fields"`
}

// Rules parameterize normalization.
type Rules struct {
	ShortIDWidth int
}

func (r Rules) width() int {
	if r.ShortIDWidth <= 0 {
		return DefaultShortIDWidth
	}
	return r.ShortIDWidth
}

// Candidate is a structurally valid employee record awaiting classification.
type Candidate struct {
	Row                int               `json:"row"`
	Name               string            `json:"name"`
	Email              string            `json:"email"`
	ShortID            string            `json:"matricula,omitempty"`
	ShortIDSynthesized bool              `json:"matricula_synthesized,omitempty"`
	BirthDate          *time.Time        `json:"birth_date,omitempty"`
	Phone              string            `json:"phone,omitempty"`
	Source             map[string]string `json:"source,omitempty"`
}

// RosterEntry is the projection of an existing employee used for matching.
type RosterEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	ShortID string `json:"matricula"`
	Status  string `json:"status"`
}

// Active reports whether the entry takes part in collision detection.
func (e RosterEntry) Active() bool {
	return e.Status == StatusActive
}

// Conflict pairs a candidate with the active employee holding one of its keys.
type Conflict struct {
	Candidate Candidate   `json:"candidate"`
	Existing  RosterEntry `json:"existing"`
	MatchedBy KeyKind     `json:"matched_by"`
}

// Decision records whether a conflict should replace the existing employee.
type Decision struct {
	Conflict Conflict `json:"conflict"`
	Resolve  bool     `json:"resolve"`
}

// RowError is a row excluded from the import with its reason.
type RowError struct {
	Row     int               `json:"row"`
	Data    map[string]string `json:"data,omitempty"`
	Reason  Reason            `json:"reason"`
	Message string            `json:"message"`
}

// CreatedIdentity identifies an employee created by a commit.
type CreatedIdentity struct {
	Row     int    `json:"row"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	ShortID string `json:"matricula"`
}

// Report is the outcome of an import attempt.
type Report struct {
	Imported    int               `json:"imported"`
	Deactivated int               `json:"deactivated"`
	Skipped     int               `json:"skipped"`
	Errors      int               `json:"errors"`
	ErrorRows   []RowError        `json:"error_rows"`
	Created     []CreatedIdentity `json:"created,omitempty"`
}

func rowError(row int, data map[string]string, reason Reason, message string) RowError {
	return RowError{Row: row, Data: data, Reason: reason, Message: message}
}
