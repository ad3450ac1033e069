package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Deactivator flips an existing employee to inactive.
type Deactivator interface {
	Deactivate(ctx context.Context, id string) error
}

// Creator inserts a batch of candidates. Per-row rejections are reported in
// the result; a returned error means the whole call failed.
type Creator interface {
	CreateMany(ctx context.Context, batch []Candidate) (CreateResult, error)
}

// Rejection is a single row refused by the Creator.
type Rejection struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// CreateResult is what a Creator reports back for one batch.
type CreateResult struct {
	Created  []CreatedIdentity `json:"created"`
	Rejected []Rejection       `json:"rejected"`
}

// Coordinator applies resolved decisions and the creation batch.
type Coordinator struct {
	deactivator Deactivator
	creator     Creator
	logger      *zap.Logger
}

// NewCoordinator wires the collaborators used during commit.
func NewCoordinator(deactivator Deactivator, creator Creator, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{deactivator: deactivator, creator: creator, logger: logger}
}

// Commit deactivates the employees behind resolved conflicts, then creates
// the valid candidates together with the replacements whose deactivation
// succeeded. It never fails as a whole: every problem becomes an error row.
func (c *Coordinator) Commit(ctx context.Context, valid []Candidate, decisions []Decision, prior []RowError) Report {
	report := Report{ErrorRows: append([]RowError{}, prior...)}

	batch := make([]Candidate, 0, len(valid)+len(decisions))
	batch = append(batch, valid...)

	for _, d := range decisions {
		if !d.Resolve {
			report.Skipped++
			continue
		}
		existing := d.Conflict.Existing
		if err := c.deactivator.Deactivate(ctx, existing.ID); err != nil {
			c.logger.Warn("deactivate existing employee failed",
				zap.String("employee_id", existing.ID),
				zap.Int("row", d.Conflict.Candidate.Row),
				zap.Error(err))
			report.ErrorRows = append(report.ErrorRows, rowError(
				d.Conflict.Candidate.Row,
				d.Conflict.Candidate.Source,
				ReasonDeactivationFailed,
				fmt.Sprintf("failed to deactivate existing employee: %s", existing.Name),
			))
			continue
		}
		report.Deactivated++
		batch = append(batch, d.Conflict.Candidate)
	}

	if len(batch) > 0 {
		c.create(ctx, batch, &report)
	}

	report.Errors = len(report.ErrorRows)
	return report
}

func (c *Coordinator) create(ctx context.Context, batch []Candidate, report *Report) {
	byRow := make(map[int]Candidate, len(batch))
	for _, cand := range batch {
		byRow[cand.Row] = cand
	}

	result, err := c.creator.CreateMany(ctx, batch)
	if err != nil {
		c.logger.Error("create employees batch failed", zap.Int("batch", len(batch)), zap.Error(err))
		for _, cand := range batch {
			report.ErrorRows = append(report.ErrorRows, rowError(cand.Row, cand.Source, ReasonCreationFailed, err.Error()))
		}
		return
	}

	rejected := make(map[int]struct{}, len(result.Rejected))
	for _, r := range result.Rejected {
		if _, ok := byRow[r.Row]; !ok {
			continue
		}
		if _, dup := rejected[r.Row]; dup {
			continue
		}
		rejected[r.Row] = struct{}{}
		report.ErrorRows = append(report.ErrorRows, rowError(r.Row, byRow[r.Row].Source, ReasonCreationFailed, r.Message))
	}

	report.Created = make([]CreatedIdentity, 0, len(result.Created))
	created := make(map[int]struct{}, len(result.Created))
	for _, identity := range result.Created {
		if _, bad := rejected[identity.Row]; bad {
			continue
		}
		if _, ok := byRow[identity.Row]; !ok {
			continue
		}
		if _, dup := created[identity.Row]; dup {
			continue
		}
		created[identity.Row] = struct{}{}
		report.Created = append(report.Created, identity)
	}
	report.Imported = len(report.Created)

	// Rows the store neither created nor rejected were silently dropped.
	for _, cand := range batch {
		if _, ok := created[cand.Row]; ok {
			continue
		}
		if _, ok := rejected[cand.Row]; ok {
			continue
		}
		report.ErrorRows = append(report.ErrorRows, rowError(cand.Row, cand.Source, ReasonCreationFailed, "employee was not created"))
	}
}
