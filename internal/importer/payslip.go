package importer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PayslipStatus is the classification of one uploaded payslip file.
type PayslipStatus string

const (
	PayslipReady     PayslipStatus = "ready"
	PayslipDuplicate PayslipStatus = "duplicate"
	PayslipError     PayslipStatus = "error"
)

// Filename matching failures.
var (
	ErrInvalidFilename     = errors.New("invalid file name")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrInvalidPeriod       = errors.New("invalid period")
)

// PayslipRules parameterize filename matching.
type PayslipRules struct {
	ShortIDWidth int
	Extensions   []string
	Now          func() time.Time
}

func (r PayslipRules) width() int {
	if r.ShortIDWidth <= 0 {
		return DefaultShortIDWidth
	}
	return r.ShortIDWidth
}

func (r PayslipRules) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r PayslipRules) allows(ext string) bool {
	if len(r.Extensions) == 0 {
		return strings.EqualFold(ext, "pdf")
	}
	for _, allowed := range r.Extensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

var (
	patternMu    sync.Mutex
	patternCache = map[int]*regexp.Regexp{}
)

func filenamePattern(width int) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[width]; ok {
		return re
	}
	re := regexp.MustCompile(fmt.Sprintf(`(?i)^(\d{%d})[-_](\d{2})[-_](\d{4})\.([a-z0-9]+)$`, width))
	patternCache[width] = re
	return re
}

// FilenameMatch is the identity and period encoded in a payslip file name.
type FilenameMatch struct {
	ShortID   string `json:"matricula"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	Extension string `json:"extension"`
}

// MatchFilename parses names shaped like <matricula>-<MM>-<YYYY>.<ext>.
func MatchFilename(name string, rules PayslipRules) (FilenameMatch, error) {
	parts := filenamePattern(rules.width()).FindStringSubmatch(strings.TrimSpace(name))
	if parts == nil {
		return FilenameMatch{}, ErrInvalidFilename
	}
	month, _ := strconv.Atoi(parts[2])
	year, _ := strconv.Atoi(parts[3])
	match := FilenameMatch{ShortID: parts[1], Month: month, Year: year, Extension: strings.ToLower(parts[4])}
	if !rules.allows(match.Extension) {
		return match, ErrUnsupportedFileType
	}
	if month < 1 || month > 12 || year < 2000 || year > rules.now().Year()+1 {
		return match, ErrInvalidPeriod
	}
	return match, nil
}

// PeriodKey identifies one stored payslip.
type PeriodKey struct {
	EmployeeID string
	Month      int
	Year       int
}

// PayslipItem is the per-file outcome of classification.
type PayslipItem struct {
	Index        int           `json:"index"`
	FileName     string        `json:"file_name"`
	Ref          string        `json:"ref,omitempty"`
	EmployeeID   string        `json:"employee_id,omitempty"`
	EmployeeName string        `json:"employee_name,omitempty"`
	ShortID      string        `json:"matricula,omitempty"`
	Month        int           `json:"month,omitempty"`
	Year         int           `json:"year,omitempty"`
	Status       PayslipStatus `json:"status"`
	Reason       Reason        `json:"reason,omitempty"`
	Message      string        `json:"message,omitempty"`
	Replace      bool          `json:"replace"`
}

// PayslipUpload names one file handed to classification. Ref is an opaque
// handle to the staged content. Reject carries a content problem found while
// staging; such files are reported as unsupported.
type PayslipUpload struct {
	Name   string
	Ref    string
	Reject string
}

// ClassifyPayslips matches every upload against the roster and the set of
// periods already stored. roster may include inactive employees; an active
// holder of a matricula wins over an inactive one.
func ClassifyPayslips(uploads []PayslipUpload, roster []RosterEntry, stored map[PeriodKey]bool, rules PayslipRules) []PayslipItem {
	holders := make(map[string]RosterEntry, len(roster))
	for _, entry := range roster {
		if entry.ShortID == "" {
			continue
		}
		if current, ok := holders[entry.ShortID]; ok && current.Active() {
			continue
		}
		holders[entry.ShortID] = entry
	}

	items := make([]PayslipItem, len(uploads))
	seen := make(map[PeriodKey]int, len(uploads))
	for i, upload := range uploads {
		item := PayslipItem{Index: i, FileName: upload.Name, Ref: upload.Ref}
		if upload.Reject != "" {
			items[i] = item.fail(ReasonUnsupportedFile, upload.Reject)
			continue
		}

		match, err := MatchFilename(upload.Name, rules)
		switch {
		case errors.Is(err, ErrInvalidFilename):
			items[i] = item.fail(ReasonInvalidFilename, "invalid file name")
			continue
		case errors.Is(err, ErrUnsupportedFileType):
			items[i] = item.fail(ReasonUnsupportedFile, "unsupported file type: "+match.Extension)
			continue
		}
		item.ShortID, item.Month, item.Year = match.ShortID, match.Month, match.Year

		employee, ok := holders[match.ShortID]
		if !ok {
			items[i] = item.fail(ReasonUnknownEmployee, "matricula not found")
			continue
		}
		item.EmployeeID, item.EmployeeName = employee.ID, employee.Name

		if errors.Is(err, ErrInvalidPeriod) {
			items[i] = item.fail(ReasonInvalidPeriod, "invalid date")
			continue
		}

		key := PeriodKey{EmployeeID: employee.ID, Month: match.Month, Year: match.Year}
		if first, dup := seen[key]; dup {
			items[i] = item.fail(ReasonDuplicatePeriod, fmt.Sprintf("same period as %s", uploads[first].Name))
			continue
		}
		seen[key] = i

		item.Status = PayslipReady
		if stored[key] {
			item.Status = PayslipDuplicate
			item.Message = "payslip already exists"
		}
		items[i] = item
	}
	return items
}

func (p PayslipItem) fail(reason Reason, message string) PayslipItem {
	p.Status = PayslipError
	p.Reason = reason
	p.Message = message
	return p
}

// PayslipBatch holds classified files while the operator chooses which
// duplicates to replace.
type PayslipBatch struct {
	Items []PayslipItem `json:"items"`
}

// SetReplace opts a duplicate in or out of replacement.
func (b *PayslipBatch) SetReplace(i int, replace bool) error {
	if i < 0 || i >= len(b.Items) {
		return fmt.Errorf("%w: %d", ErrDecisionIndex, i)
	}
	if b.Items[i].Status != PayslipDuplicate {
		return fmt.Errorf("file %d is not a duplicate", i)
	}
	b.Items[i].Replace = replace
	return nil
}

// Counts returns the number of items in each status.
func (b *PayslipBatch) Counts() map[PayslipStatus]int {
	counts := map[PayslipStatus]int{PayslipReady: 0, PayslipDuplicate: 0, PayslipError: 0}
	for _, item := range b.Items {
		counts[item.Status]++
	}
	return counts
}

// PayslipRecord is one payslip written on commit.
type PayslipRecord struct {
	EmployeeID string
	Month      int
	Year       int
	Ref        string
	FileName   string
}

// PayslipWriter upserts payslips keyed by employee and period.
type PayslipWriter interface {
	UpsertMany(ctx context.Context, records []PayslipRecord) error
}

// PayslipReport is the outcome of a payslip batch commit.
type PayslipReport struct {
	Imported   int           `json:"imported"`
	Replaced   int           `json:"replaced"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	ErrorItems []PayslipItem `json:"error_items"`
	Written    []PayslipItem `json:"written,omitempty"`
}

// CommitPayslips writes ready files and opted-in duplicates in one call.
func CommitPayslips(ctx context.Context, writer PayslipWriter, batch *PayslipBatch, logger *zap.Logger) PayslipReport {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := PayslipReport{ErrorItems: make([]PayslipItem, 0)}
	pending := make([]PayslipItem, 0, len(batch.Items))
	for _, item := range batch.Items {
		switch {
		case item.Status == PayslipError:
			report.ErrorItems = append(report.ErrorItems, item)
		case item.Status == PayslipDuplicate && !item.Replace:
			report.Skipped++
		default:
			pending = append(pending, item)
		}
	}

	if len(pending) > 0 {
		records := make([]PayslipRecord, len(pending))
		for i, item := range pending {
			records[i] = PayslipRecord{EmployeeID: item.EmployeeID, Month: item.Month, Year: item.Year, Ref: item.Ref, FileName: item.FileName}
		}
		if err := writer.UpsertMany(ctx, records); err != nil {
			logger.Error("upsert payslips failed", zap.Int("batch", len(records)), zap.Error(err))
			for _, item := range pending {
				report.ErrorItems = append(report.ErrorItems, item.fail(ReasonPayslipWriteFailed, err.Error()))
			}
		} else {
			for _, item := range pending {
				if item.Status == PayslipDuplicate {
					report.Replaced++
				} else {
					report.Imported++
				}
			}
			report.Written = pending
		}
	}

	report.Errors = len(report.ErrorItems)
	return report
}
