package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payslipRules = PayslipRules{
	ShortIDWidth: 6,
	Extensions:   []string{"pdf"},
	Now:          func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) },
}

type recordingWriter struct {
	records []PayslipRecord
	err     error
	calls   int
}

func (w *recordingWriter) UpsertMany(ctx context.Context, records []PayslipRecord) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, records...)
	return nil
}

func TestMatchFilename(t *testing.T) {
	match, err := MatchFilename("001234-03-2024.PDF", payslipRules)
	require.NoError(t, err)
	assert.Equal(t, FilenameMatch{ShortID: "001234", Month: 3, Year: 2024, Extension: "pdf"}, match)

	match, err = MatchFilename("001234_12_2025.pdf", payslipRules)
	require.NoError(t, err)
	assert.Equal(t, 12, match.Month)

	_, err = MatchFilename("1234-03-2024.pdf", payslipRules)
	assert.ErrorIs(t, err, ErrInvalidFilename)
	_, err = MatchFilename("payslip.pdf", payslipRules)
	assert.ErrorIs(t, err, ErrInvalidFilename)
	_, err = MatchFilename("001234-03-2024.docx", payslipRules)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	_, err = MatchFilename("001234-13-2024.pdf", payslipRules)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = MatchFilename("001234-01-1999.pdf", payslipRules)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = MatchFilename("001234-01-2026.pdf", payslipRules)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestClassifyPayslips(t *testing.T) {
	roster := []RosterEntry{
		{ID: "old", Name: "Former", ShortID: "000001", Status: StatusInactive},
		{ID: "emp-1", Name: "Ana", ShortID: "000001", Status: StatusActive},
		{ID: "emp-2", Name: "Bia", ShortID: "000002", Status: StatusInactive},
	}
	stored := map[PeriodKey]bool{{EmployeeID: "emp-1", Month: 2, Year: 2024}: true}

	items := ClassifyPayslips([]PayslipUpload{
		{Name: "000001-01-2024.pdf", Ref: "r0"},
		{Name: "000001-02-2024.pdf", Ref: "r1"},
		{Name: "000001-01-2024.pdf", Ref: "r2"},
		{Name: "000009-01-2024.pdf", Ref: "r3"},
		{Name: "000002-00-2024.pdf", Ref: "r4"},
		{Name: "holiday.pdf", Ref: "r5"},
		{Name: "000002-04-2024.pdf", Ref: "r6"},
	}, roster, stored, payslipRules)

	require.Len(t, items, 7)
	assert.Equal(t, PayslipReady, items[0].Status)
	assert.Equal(t, "emp-1", items[0].EmployeeID)
	assert.Equal(t, "r0", items[0].Ref)
	assert.Equal(t, PayslipDuplicate, items[1].Status)
	assert.False(t, items[1].Replace)
	assert.Equal(t, ReasonDuplicatePeriod, items[2].Reason)
	assert.Equal(t, ReasonUnknownEmployee, items[3].Reason)
	assert.Equal(t, ReasonInvalidPeriod, items[4].Reason)
	assert.Equal(t, ReasonInvalidFilename, items[5].Reason)
	assert.Equal(t, PayslipReady, items[6].Status)
	assert.Equal(t, "emp-2", items[6].EmployeeID)

	batch := &PayslipBatch{Items: items}
	counts := batch.Counts()
	assert.Equal(t, 2, counts[PayslipReady])
	assert.Equal(t, 1, counts[PayslipDuplicate])
	assert.Equal(t, 4, counts[PayslipError])
}

func TestClassifyPayslipsRejectedContent(t *testing.T) {
	roster := []RosterEntry{{ID: "emp-1", Name: "Ana", ShortID: "000001", Status: StatusActive}}

	items := ClassifyPayslips([]PayslipUpload{
		{Name: "000001-01-2024.pdf", Reject: "file is not a PDF document"},
		{Name: "000001-01-2024.pdf", Ref: "r1"},
	}, roster, nil, payslipRules)

	assert.Equal(t, PayslipError, items[0].Status)
	assert.Equal(t, ReasonUnsupportedFile, items[0].Reason)
	assert.Equal(t, "file is not a PDF document", items[0].Message)
	assert.Equal(t, PayslipReady, items[1].Status)
}

func TestCommitPayslips(t *testing.T) {
	batch := &PayslipBatch{Items: []PayslipItem{
		{Index: 0, EmployeeID: "emp-1", Month: 1, Year: 2024, Status: PayslipReady, Ref: "a"},
		{Index: 1, EmployeeID: "emp-1", Month: 2, Year: 2024, Status: PayslipDuplicate, Ref: "b"},
		{Index: 2, EmployeeID: "emp-2", Month: 2, Year: 2024, Status: PayslipDuplicate, Ref: "c"},
		{Index: 3, Status: PayslipError, Reason: ReasonInvalidFilename},
	}}
	require.Error(t, batch.SetReplace(0, true))
	require.ErrorIs(t, batch.SetReplace(9, true), ErrDecisionIndex)
	require.NoError(t, batch.SetReplace(1, true))

	writer := &recordingWriter{}
	report := CommitPayslips(context.Background(), writer, batch, nil)
	assert.Equal(t, 1, writer.calls)
	assert.Len(t, writer.records, 2)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Replaced)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Errors)
	assert.Len(t, report.Written, 2)
}

func TestCommitPayslipsWriteFailure(t *testing.T) {
	batch := &PayslipBatch{Items: []PayslipItem{
		{Index: 0, EmployeeID: "emp-1", Month: 1, Year: 2024, Status: PayslipReady},
		{Index: 1, EmployeeID: "emp-2", Month: 1, Year: 2024, Status: PayslipReady},
	}}
	report := CommitPayslips(context.Background(), &recordingWriter{err: errors.New("db down")}, batch, nil)
	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 2, report.Errors)
	assert.Equal(t, ReasonPayslipWriteFailed, report.ErrorItems[0].Reason)
}
