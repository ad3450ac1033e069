package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/repository"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/export"
	"github.com/noah-isme/hr-admin-api/pkg/spreadsheet"
)

const importSessionPrefix = "import:employees:"

// Report formats accepted by ExportReport.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type employeeImportStore interface {
	ListRoster(ctx context.Context, activeOnly bool) ([]models.Employee, error)
	HighestMatricula(ctx context.Context) (int, error)
	UpdateStatus(ctx context.Context, id string, status models.EmployeeStatus) error
	CreateMany(ctx context.Context, employees []models.Employee) ([]error, error)
}

// EmployeeImportConfig tunes the bulk import flow.
type EmployeeImportConfig struct {
	MaxUploadBytes int64
	Rules          importer.Rules
}

// ImportSession is an import attempt parked between requests.
type ImportSession struct {
	ID        string            `json:"id"`
	FileName  string            `json:"file_name"`
	CreatedBy string            `json:"created_by,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Attempt   *importer.Attempt `json:"attempt"`
	// Committing is set before writes start and stays set if the result
	// could not be stored afterwards.
	Committing bool `json:"committing,omitempty"`
}

// File is a generated document ready to be downloaded.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// EmployeeImportService runs spreadsheet imports against the roster.
type EmployeeImportService struct {
	engine   *importer.Engine
	sessions *SessionStore
	activity activityRecorder
	metrics  *MetricsService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	config   EmployeeImportConfig
	logger   *zap.Logger

	// mu serializes session mutations and commits handled by this process.
	mu sync.Mutex
}

// NewEmployeeImportService wires the import engine over the employee store.
func NewEmployeeImportService(store employeeImportStore, sessions *SessionStore, activity activityRecorder, metrics *MetricsService, config EmployeeImportConfig, logger *zap.Logger) *EmployeeImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 * 1024 * 1024
	}
	roster := employeeRoster{store: store}
	return &EmployeeImportService{
		engine:   importer.NewEngine(roster, roster, roster, config.Rules, logger.Named("importer")),
		sessions: sessions,
		activity: activity,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		config:   config,
		logger:   logger,
	}
}

// Preview reads an uploaded spreadsheet and classifies it. An upload without
// conflicts is committed right away; otherwise the session waits for
// decisions. Unreadable files end in a report with a single error row.
func (s *EmployeeImportService) Preview(ctx context.Context, actor models.Actor, fileName string, data []byte) (*ImportSession, error) {
	if int64(len(data)) > s.config.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.MaxUploadBytes))
	}

	session := &ImportSession{
		ID:        uuid.NewString(),
		FileName:  fileName,
		CreatedBy: actor.ID,
		CreatedAt: time.Now().UTC(),
	}

	rows, err := spreadsheet.Read(fileName, data)
	if err != nil {
		s.logger.Warn("import file unreadable", zap.String("file", fileName), zap.Error(err))
		session.Attempt = importer.Failed(importer.ReasonUnreadableFile, unreadableMessage(err))
	} else {
		session.Attempt = s.engine.Analyze(ctx, rawRows(rows))
	}
	s.metrics.RecordImportAnalyzed(session.Attempt.Stage)

	if session.Attempt.Stage == importer.StageUpload {
		s.mu.Lock()
		s.commit(ctx, actor, session)
		s.mu.Unlock()
	}

	save := s.sessions.Save(ctx, s.key(session.ID), session)
	if session.Attempt.Stage == importer.StageResult {
		save = s.saveResult(context.WithoutCancel(ctx), session)
	}
	if err := save; err != nil {
		if session.Attempt.Stage == importer.StageResult {
			s.logger.Warn("import result not retained", zap.String("session_id", session.ID), zap.Error(err))
			return session, nil
		}
		return nil, err
	}
	return session, nil
}

// Analyze classifies an uploaded spreadsheet without parking a session or
// touching the roster.
func (s *EmployeeImportService) Analyze(ctx context.Context, fileName string, data []byte) (*importer.Attempt, error) {
	if int64(len(data)) > s.config.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.MaxUploadBytes))
	}
	rows, err := spreadsheet.Read(fileName, data)
	if err != nil {
		return importer.Failed(importer.ReasonUnreadableFile, unreadableMessage(err)), nil
	}
	return s.engine.Analyze(ctx, rawRows(rows)), nil
}

// Get returns a parked session.
func (s *EmployeeImportService) Get(ctx context.Context, id string) (*ImportSession, error) {
	var session ImportSession
	if err := s.sessions.Load(ctx, s.key(id), &session); err != nil {
		return nil, err
	}
	if session.Attempt == nil {
		return nil, appErrors.ErrSessionExpired
	}
	return &session, nil
}

// SetDecision records whether conflict index replaces the existing employee.
func (s *EmployeeImportService) SetDecision(ctx context.Context, id string, index int, resolve bool) (*ImportSession, error) {
	return s.mutate(ctx, id, func(decisions *importer.Session) error {
		return decisions.Set(index, resolve)
	})
}

// ToggleDecision flips the decision of conflict index.
func (s *EmployeeImportService) ToggleDecision(ctx context.Context, id string, index int) (*ImportSession, error) {
	return s.mutate(ctx, id, func(decisions *importer.Session) error {
		_, err := decisions.Toggle(index)
		return err
	})
}

// SetAllDecisions applies the same decision to every conflict.
func (s *EmployeeImportService) SetAllDecisions(ctx context.Context, id string, resolve bool) (*ImportSession, error) {
	return s.mutate(ctx, id, func(decisions *importer.Session) error {
		decisions.SetAll(resolve)
		return nil
	})
}

func (s *EmployeeImportService) mutate(ctx context.Context, id string, fn func(*importer.Session) error) (*ImportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Attempt.Stage != importer.StageConflict || session.Committing {
		return nil, appErrors.Clone(appErrors.ErrConflict, "import has no pending conflicts")
	}
	if err := fn(session.Attempt.Session); err != nil {
		if errors.Is(err, importer.ErrDecisionIndex) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conflict not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update decision")
	}
	if err := s.sessions.Save(ctx, s.key(id), session); err != nil {
		return nil, err
	}
	return session, nil
}

// Commit applies the session with its current decisions. Committing an
// already finished session returns the stored report.
func (s *EmployeeImportService) Commit(ctx context.Context, actor models.Actor, id string) (*ImportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Attempt.Stage == importer.StageResult {
		return session, nil
	}
	if session.Committing {
		return nil, appErrors.Clone(appErrors.ErrConflict, "import was already committed but its result was not retained")
	}

	session.Committing = true
	if err := s.sessions.Save(ctx, s.key(id), session); err != nil {
		return nil, err
	}

	s.commit(ctx, actor, session)
	session.Committing = false
	if err := s.saveResult(context.WithoutCancel(ctx), session); err != nil {
		s.logger.Error("import result not retained", zap.String("session_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "import was applied but its result could not be stored")
	}
	return session, nil
}

const resultSaveAttempts = 3

func (s *EmployeeImportService) saveResult(ctx context.Context, session *ImportSession) error {
	var err error
	for attempt := 1; attempt <= resultSaveAttempts; attempt++ {
		if err = s.sessions.Save(ctx, s.key(session.ID), session); err == nil {
			return nil
		}
		if attempt < resultSaveAttempts {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
	}
	return err
}

// commit runs detached from the request so a client disconnect cannot stop
// it between deactivations and creations.
func (s *EmployeeImportService) commit(ctx context.Context, actor models.Actor, session *ImportSession) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	report := s.engine.Commit(ctx, session.Attempt)
	s.metrics.RecordImportReport(report, time.Since(start))

	if report.Imported > 0 {
		s.activity.Record(ctx, actor, models.ActivityEmployeeImport, "employees", &session.ID,
			fmt.Sprintf("Importou %d novo(s) usuário(s).", report.Imported))
	}
	s.logger.Info("employee import finished",
		zap.String("session_id", session.ID),
		zap.String("file", session.FileName),
		zap.Int("imported", report.Imported),
		zap.Int("deactivated", report.Deactivated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))
}

// Abandon discards a session. Nothing is written to the roster.
func (s *EmployeeImportService) Abandon(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, s.key(id))
}

// ExportReport renders the outcome of a finished session as CSV or PDF.
func (s *EmployeeImportService) ExportReport(ctx context.Context, id, format string) (*File, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Attempt.Stage != importer.StageResult || session.Attempt.Report == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "import has not been committed")
	}
	data := reportDataset(*session.Attempt.Report)

	name := "importacao-" + session.ID
	switch strings.ToLower(format) {
	case "", ReportFormatCSV:
		out, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
		}
		return &File{Name: name + ".csv", ContentType: s.csv.ContentType(), Data: out}, nil
	case ReportFormatPDF:
		out, err := s.pdf.Render(data, "Relatório de importação de funcionários")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
		}
		return &File{Name: name + ".pdf", ContentType: s.pdf.ContentType(), Data: out}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// Template returns the CSV import template with an example row.
func (s *EmployeeImportService) Template() (*File, error) {
	example := map[string]string{
		importer.HeaderName:      "Maria da Silva",
		importer.HeaderEmail:     "maria.silva@empresa.com.br",
		importer.HeaderShortID:   "",
		importer.HeaderBirthDate: "1990-05-21",
		importer.HeaderPhone:     "(11) 98888-7777",
	}
	out, err := s.csv.Render(export.Dataset{Headers: importer.TemplateHeaders, Rows: []map[string]string{example}})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return &File{Name: "modelo-importacao-funcionarios.csv", ContentType: s.csv.ContentType(), Data: out}, nil
}

func (s *EmployeeImportService) key(id string) string {
	return importSessionPrefix + id
}

func rawRows(rows []spreadsheet.Row) []importer.RawRow {
	out := make([]importer.RawRow, len(rows))
	for i, row := range rows {
		out[i] = importer.RawRow{Line: row.Line, Fields: row.Fields}
	}
	return out
}

func unreadableMessage(err error) string {
	if errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
		return "unsupported file: upload a .csv or .xlsx spreadsheet"
	}
	if errors.Is(err, spreadsheet.ErrEmptySheet) {
		return "the spreadsheet has no header row"
	}
	return "could not read the spreadsheet: " + err.Error()
}

func reportDataset(report importer.Report) export.Dataset {
	headers := []string{"Linha", "Motivo", "Mensagem", "Dados"}
	rows := make([]map[string]string, len(report.ErrorRows))
	for i, row := range report.ErrorRows {
		rows[i] = map[string]string{
			"Linha":    strconv.Itoa(row.Row),
			"Motivo":   string(row.Reason),
			"Mensagem": row.Message,
			"Dados":    formatSource(row.Data),
		}
	}
	return export.Dataset{
		Headers: headers,
		Rows:    rows,
		Summary: []export.SummaryItem{
			{Label: "Importados", Value: strconv.Itoa(report.Imported)},
			{Label: "Desativados", Value: strconv.Itoa(report.Deactivated)},
			{Label: "Conflitos ignorados", Value: strconv.Itoa(report.Skipped)},
			{Label: "Erros", Value: strconv.Itoa(report.Errors)},
		},
	}
}

func formatSource(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if data[k] == "" {
			continue
		}
		parts = append(parts, k+": "+data[k])
	}
	return strings.Join(parts, "; ")
}

// employeeRoster adapts the employee store to the importer collaborators.
type employeeRoster struct {
	store employeeImportStore
}

func (r employeeRoster) LoadActiveRoster(ctx context.Context) ([]importer.RosterEntry, error) {
	employees, err := r.store.ListRoster(ctx, true)
	if err != nil {
		return nil, err
	}
	return rosterEntries(employees), nil
}

func (r employeeRoster) HighestShortID(ctx context.Context) (int, error) {
	return r.store.HighestMatricula(ctx)
}

func (r employeeRoster) Deactivate(ctx context.Context, id string) error {
	return r.store.UpdateStatus(ctx, id, models.EmployeeStatusInactive)
}

func (r employeeRoster) CreateMany(ctx context.Context, batch []importer.Candidate) (importer.CreateResult, error) {
	employees := make([]models.Employee, len(batch))
	for i, cand := range batch {
		employees[i] = employeeFromCandidate(cand)
	}

	rowErrs, err := r.store.CreateMany(ctx, employees)
	if err != nil {
		return importer.CreateResult{}, err
	}

	result := importer.CreateResult{Created: make([]importer.CreatedIdentity, 0, len(batch))}
	for i, cand := range batch {
		if i < len(rowErrs) && rowErrs[i] != nil {
			message := rowErrs[i].Error()
			if errors.Is(rowErrs[i], repository.ErrDuplicateEmployee) {
				message = "email or matricula already belongs to an active employee"
			}
			result.Rejected = append(result.Rejected, importer.Rejection{Row: cand.Row, Message: message})
			continue
		}
		result.Created = append(result.Created, importer.CreatedIdentity{
			Row:     cand.Row,
			ID:      employees[i].ID,
			Email:   cand.Email,
			ShortID: cand.ShortID,
		})
	}
	return result, nil
}

func employeeFromCandidate(cand importer.Candidate) models.Employee {
	employee := models.Employee{
		Name:               cand.Name,
		Email:              cand.Email,
		Role:               models.RoleEmployee,
		Status:             models.EmployeeStatusActive,
		BirthDate:          cand.BirthDate,
		NeedsPasswordSetup: true,
	}
	if cand.ShortID != "" {
		shortID := cand.ShortID
		employee.Matricula = &shortID
	}
	if cand.Phone != "" {
		phone := cand.Phone
		employee.EmergencyPhone = &phone
	}
	return employee
}

func rosterEntries(employees []models.Employee) []importer.RosterEntry {
	entries := make([]importer.RosterEntry, len(employees))
	for i, e := range employees {
		entries[i] = importer.RosterEntry{ID: e.ID, Name: e.Name, Email: e.Email, Status: string(e.Status)}
		if e.Matricula != nil {
			entries[i].ShortID = *e.Matricula
		}
	}
	return entries
}
