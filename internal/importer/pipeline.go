package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Stage is the position of an attempt in the import flow.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageConflict Stage = "conflict"
	StageResult   Stage = "result"
)

// RosterSource provides the roster snapshot an attempt is classified against.
type RosterSource interface {
	LoadActiveRoster(ctx context.Context) ([]RosterEntry, error)
	HighestShortID(ctx context.Context) (int, error)
}

// Resolver lets a caller adjust conflict decisions before commit.
type Resolver func(*Session)

// Attempt is a single pass through the import flow. It is safe to serialize
// between the analyze and commit steps.
type Attempt struct {
	Stage    Stage       `json:"stage"`
	Rows     int         `json:"rows"`
	Valid    []Candidate `json:"valid"`
	Errors   []RowError  `json:"errors"`
	Session  *Session    `json:"session,omitempty"`
	Sequence Sequence    `json:"sequence"`
	Report   *Report     `json:"report,omitempty"`
}

// HasConflicts reports whether the attempt waits on operator decisions.
func (a *Attempt) HasConflicts() bool {
	return a != nil && a.Session.Len() > 0
}

// Failed builds a finished attempt for a failure that prevents
// classification. The report carries a single synthetic row 0.
func Failed(reason Reason, message string) *Attempt {
	report := Report{
		Errors:    1,
		ErrorRows: []RowError{rowError(0, nil, reason, message)},
	}
	return &Attempt{Stage: StageResult, Report: &report}
}

// Engine drives attempts from raw rows to an outcome report.
type Engine struct {
	roster      RosterSource
	coordinator *Coordinator
	rules       Rules
	logger      *zap.Logger
}

// NewEngine builds an engine over the roster and the commit collaborators.
func NewEngine(roster RosterSource, deactivator Deactivator, creator Creator, rules Rules, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		roster:      roster,
		coordinator: NewCoordinator(deactivator, creator, logger),
		rules:       rules,
		logger:      logger,
	}
}

// Analyze normalizes and classifies rows against a fresh roster snapshot.
// The returned attempt is in the conflict stage when decisions are pending,
// otherwise it is still in the upload stage and ready to commit.
func (e *Engine) Analyze(ctx context.Context, rows []RawRow) *Attempt {
	active, err := e.roster.LoadActiveRoster(ctx)
	if err != nil {
		e.logger.Error("load active roster failed", zap.Error(err))
		return Failed(ReasonRosterUnavailable, fmt.Sprintf("failed to load employee roster: %v", err))
	}
	highest, err := e.roster.HighestShortID(ctx)
	if err != nil {
		e.logger.Error("load highest matricula failed", zap.Error(err))
		return Failed(ReasonRosterUnavailable, fmt.Sprintf("failed to load employee roster: %v", err))
	}

	candidates := make([]Candidate, 0, len(rows))
	errs := make([]RowError, 0)
	for _, row := range rows {
		cand, rowErr := Normalize(row, e.rules)
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		candidates = append(candidates, cand)
	}

	result := Classify(candidates, BuildIndex(active, highest), Sequence{Width: e.rules.width()})

	attempt := &Attempt{
		Stage:    StageUpload,
		Rows:     len(rows),
		Valid:    result.Valid,
		Errors:   append(errs, result.Errors...),
		Sequence: result.Sequence,
	}
	if len(result.Conflicts) > 0 {
		attempt.Stage = StageConflict
		attempt.Session = NewSession(result.Conflicts)
	}

	e.logger.Info("import analyzed",
		zap.Int("rows", attempt.Rows),
		zap.Int("valid", len(attempt.Valid)),
		zap.Int("conflicts", attempt.Session.Len()),
		zap.Int("errors", len(attempt.Errors)))
	return attempt
}

// Commit applies the attempt and moves it to the result stage. Committing a
// finished attempt returns its existing report.
func (e *Engine) Commit(ctx context.Context, attempt *Attempt) Report {
	if attempt.Stage == StageResult && attempt.Report != nil {
		return *attempt.Report
	}

	report := e.coordinator.Commit(ctx, attempt.Valid, attempt.Session.Decisions(), attempt.Errors)
	attempt.Stage = StageResult
	attempt.Report = &report

	e.logger.Info("import committed",
		zap.Int("imported", report.Imported),
		zap.Int("deactivated", report.Deactivated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))
	return report
}

// RunImport analyzes rows, lets resolve adjust any conflicts and commits.
// A nil resolver keeps the default of replacing every conflicting employee.
func (e *Engine) RunImport(ctx context.Context, rows []RawRow, resolve Resolver) Report {
	attempt := e.Analyze(ctx, rows)
	if attempt.HasConflicts() && resolve != nil {
		resolve(attempt.Session)
	}
	return e.Commit(ctx, attempt)
}
