package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(roster *memoryRoster) *Engine {
	return NewEngine(roster, roster, roster, Rules{ShortIDWidth: 6}, zap.NewNop())
}

func TestReplaceConflictByEmail(t *testing.T) {
	roster := &memoryRoster{entries: []RosterEntry{
		{ID: "emp-1", Name: "A", Email: "a@x.com", ShortID: "000001", Status: StatusActive},
	}}
	engine := newTestEngine(roster)

	attempt := engine.Analyze(context.Background(), []RawRow{row(2, "A2", "a@x.com", "")})
	require.Equal(t, StageConflict, attempt.Stage)
	require.Equal(t, 1, attempt.Session.Len())
	decision := attempt.Session.Decisions()[0]
	assert.True(t, decision.Resolve)
	assert.Equal(t, "emp-1", decision.Conflict.Existing.ID)
	assert.Equal(t, KeyEmail, decision.Conflict.MatchedBy)

	report := engine.Commit(context.Background(), attempt)
	assert.Equal(t, StageResult, attempt.Stage)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, StatusInactive, roster.status("emp-1"))
	assert.Equal(t, []string{"deactivate:emp-1", "create:1"}, roster.ops)
}

func TestDuplicateEmailInFile(t *testing.T) {
	roster := &memoryRoster{}
	report := newTestEngine(roster).RunImport(context.Background(), []RawRow{
		row(2, "B1", "b@x.com", ""),
		row(3, "B2", "b@x.com", ""),
	}, nil)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.ErrorRows, 1)
	assert.Equal(t, 3, report.ErrorRows[0].Row)
	assert.Equal(t, ReasonDuplicateEmail, report.ErrorRows[0].Reason)
}

func TestInvalidEmailOnly(t *testing.T) {
	roster := &memoryRoster{}
	report := newTestEngine(roster).RunImport(context.Background(), []RawRow{row(2, "C", "not-an-email", "")}, nil)

	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, ReasonInvalidEmail, report.ErrorRows[0].Reason)
	assert.Empty(t, roster.ops)
}

func TestSkippedConflictKeepsExistingActive(t *testing.T) {
	roster := &memoryRoster{entries: []RosterEntry{
		{ID: "emp-1", Name: "D", Email: "d@x.com", ShortID: "000001", Status: StatusActive},
	}}
	report := newTestEngine(roster).RunImport(context.Background(), []RawRow{row(2, "D2", "d2@x.com", "000001")}, func(s *Session) {
		require.NoError(t, s.Set(0, false))
	})

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Imported)
	assert.NotContains(t, createdEmails(report), "d2@x.com")
	assert.Equal(t, StatusActive, roster.status("emp-1"))
	assert.Empty(t, roster.ops)
}

func TestNoConflictsCommitsDirectly(t *testing.T) {
	roster := &memoryRoster{}
	engine := newTestEngine(roster)
	attempt := engine.Analyze(context.Background(), []RawRow{row(2, "E", "e@x.com", "")})
	assert.Equal(t, StageUpload, attempt.Stage)
	assert.False(t, attempt.HasConflicts())

	report := engine.Commit(context.Background(), attempt)
	assert.Equal(t, 1, report.Imported)
	again := engine.Commit(context.Background(), attempt)
	assert.Equal(t, report, again)
	assert.Len(t, roster.batches, 1)
}

func TestEmptyInputYieldsZeroReport(t *testing.T) {
	roster := &memoryRoster{}
	report := newTestEngine(roster).RunImport(context.Background(), nil, nil)
	assert.Equal(t, Report{ErrorRows: []RowError{}}, report)
	assert.Empty(t, roster.ops)
}

func TestRosterUnavailableIsCatastrophic(t *testing.T) {
	roster := &memoryRoster{loadErr: errors.New("db down")}
	report := newTestEngine(roster).RunImport(context.Background(), []RawRow{row(2, "F", "f@x.com", "")}, nil)

	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.ErrorRows, 1)
	assert.Equal(t, 0, report.ErrorRows[0].Row)
	assert.Equal(t, ReasonRosterUnavailable, report.ErrorRows[0].Reason)
	assert.Empty(t, roster.ops)
}

func TestRowCountConservation(t *testing.T) {
	roster := &memoryRoster{
		entries: []RosterEntry{
			{ID: "emp-1", Name: "One", Email: "one@x.com", ShortID: "000001", Status: StatusActive},
			{ID: "emp-2", Name: "Two", Email: "two@x.com", ShortID: "000002", Status: StatusActive},
			{ID: "emp-3", Name: "Three", Email: "three@x.com", ShortID: "000003", Status: StatusActive},
			{ID: "emp-4", Name: "Four", Email: "four@x.com", ShortID: "000004", Status: StatusInactive},
		},
		failDeact:    map[string]bool{"emp-2": true},
		rejectEmails: map[string]string{"late@x.com": "duplicate key value violates unique constraint"},
	}
	rows := []RawRow{
		row(2, "New", "new@x.com", ""),
		row(3, "One again", "one@x.com", ""),
		row(4, "Two again", "fresh@x.com", "000002"),
		row(5, "Three again", "three@x.com", ""),
		row(6, "Dup", "new@x.com", ""),
		row(7, "Bad", "bad", ""),
		row(8, "Late", "late@x.com", ""),
		row(9, "Four again", "four@x.com", "000004"),
		row(10, "", "", ""),
	}

	engine := newTestEngine(roster)
	attempt := engine.Analyze(context.Background(), rows)
	require.Equal(t, 3, attempt.Session.Len())
	assert.Equal(t, len(rows), len(attempt.Valid)+len(attempt.Errors)+attempt.Session.Len())

	require.NoError(t, attempt.Session.Set(2, false))
	report := engine.Commit(context.Background(), attempt)

	assert.Equal(t, len(rows), report.Imported+report.Skipped+report.Errors)
	assert.Equal(t, len(report.ErrorRows), report.Errors)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, 5, report.Errors)

	reasons := map[Reason]int{}
	for _, e := range report.ErrorRows {
		reasons[e.Reason]++
	}
	assert.Equal(t, 1, reasons[ReasonDeactivationFailed])
	assert.Equal(t, 1, reasons[ReasonCreationFailed])
	assert.Equal(t, 1, reasons[ReasonDuplicateEmail])
	assert.Equal(t, 1, reasons[ReasonInvalidEmail])
	assert.Equal(t, 1, reasons[ReasonMissingField])

	seenEmail := map[string]bool{}
	seenID := map[string]bool{}
	for _, created := range report.Created {
		assert.False(t, seenEmail[strings.ToLower(created.Email)])
		assert.False(t, seenID[created.ShortID])
		seenEmail[strings.ToLower(created.Email)] = true
		seenID[created.ShortID] = true
	}
}

func TestFailedDeactivationExcludesCandidate(t *testing.T) {
	roster := &memoryRoster{
		entries:   []RosterEntry{{ID: "emp-1", Name: "G", Email: "g@x.com", ShortID: "000001", Status: StatusActive}},
		failDeact: map[string]bool{"emp-1": true},
	}
	report := newTestEngine(roster).RunImport(context.Background(), []RawRow{row(2, "G2", "g@x.com", "")}, nil)

	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 0, report.Deactivated)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, ReasonDeactivationFailed, report.ErrorRows[0].Reason)
	assert.Contains(t, report.ErrorRows[0].Message, "G")
	for _, batch := range roster.batches {
		for _, c := range batch {
			assert.NotEqual(t, "g@x.com", c.Email)
		}
	}
}

func TestWholesaleCreationFailure(t *testing.T) {
	roster := &memoryRoster{
		entries:   []RosterEntry{{ID: "emp-1", Name: "H", Email: "h@x.com", ShortID: "000001", Status: StatusActive}},
		createErr: errors.New("insert failed"),
	}
	report := newTestEngine(roster).RunImport(context.Background(), []RawRow{
		row(2, "H2", "h@x.com", ""),
		row(3, "I", "i@x.com", ""),
	}, nil)

	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, 2, report.Errors)
	for _, e := range report.ErrorRows {
		assert.Equal(t, ReasonCreationFailed, e.Reason)
	}
}

func TestCreatorDroppingRowsIsNotCountedAsImported(t *testing.T) {
	roster := &memoryRoster{dropEmails: map[string]bool{"k@x.com": true, "l@x.com": true}}
	report := newTestEngine(roster).RunImport(context.Background(), []RawRow{
		row(2, "J", "j@x.com", ""),
		row(3, "K", "k@x.com", ""),
		row(4, "L", "l@x.com", ""),
	}, nil)

	assert.Equal(t, 1, report.Imported)
	assert.Len(t, report.Created, 1)
	assert.Equal(t, []string{"j@x.com"}, createdEmails(report))
	require.Equal(t, 2, report.Errors)
	rows := []int{}
	for _, e := range report.ErrorRows {
		assert.Equal(t, ReasonCreationFailed, e.Reason)
		rows = append(rows, e.Row)
	}
	assert.ElementsMatch(t, []int{3, 4}, rows)
	assert.Equal(t, 3, report.Imported+report.Errors+report.Skipped)
}
