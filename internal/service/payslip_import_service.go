package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/storage"
)

const (
	payslipSessionPrefix = "import:payslips:"
	payslipStagingDir    = "staging"
)

type payslipStore interface {
	ListPeriods(ctx context.Context, employeeIDs []string) ([]models.PayslipPeriod, error)
	UpsertMany(ctx context.Context, payslips []models.Payslip) error
	FindByID(ctx context.Context, id string) (*models.Payslip, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]models.Payslip, error)
}

type rosterReader interface {
	ListRoster(ctx context.Context, activeOnly bool) ([]models.Employee, error)
}

type payslipFileStore interface {
	Save(filename string, data []byte) (string, error)
	Move(from, to string) error
	Delete(filename string) error
	Open(filename string) (*os.File, error)
	CleanupOlderThan(dir string, ttl time.Duration) ([]string, error)
}

// PayslipConfig tunes batch payslip ingestion.
type PayslipConfig struct {
	Rules         importer.PayslipRules
	MaxFileBytes  int64
	MaxBatchFiles int
	StagingTTL    time.Duration
}

// PayslipFile is one uploaded payslip document.
type PayslipFile struct {
	Name    string
	Content io.Reader
}

// PayslipSession is a classified payslip batch parked between requests.
type PayslipSession struct {
	ID        string                         `json:"id"`
	CreatedBy string                         `json:"created_by,omitempty"`
	CreatedAt time.Time                      `json:"created_at"`
	Batch     importer.PayslipBatch          `json:"batch"`
	Counts    map[importer.PayslipStatus]int `json:"counts"`
	Report    *importer.PayslipReport        `json:"report,omitempty"`
}

// Committed reports whether the batch has been written.
func (p *PayslipSession) Committed() bool {
	return p.Report != nil
}

// PayslipDownload is a signed, time-limited link to a stored payslip.
type PayslipDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PayslipImportService matches uploaded payslips to employees by file name
// and stores them per period.
type PayslipImportService struct {
	store    payslipStore
	roster   rosterReader
	files    payslipFileStore
	signer   *storage.SignedURLSigner
	sessions *SessionStore
	activity activityRecorder
	metrics  *MetricsService
	config   PayslipConfig
	logger   *zap.Logger

	mu sync.Mutex
}

// NewPayslipImportService constructs the payslip batch service.
func NewPayslipImportService(store payslipStore, roster rosterReader, files payslipFileStore, signer *storage.SignedURLSigner, sessions *SessionStore, activity activityRecorder, metrics *MetricsService, config PayslipConfig, logger *zap.Logger) *PayslipImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileBytes <= 0 {
		config.MaxFileBytes = 5 * 1024 * 1024
	}
	if config.MaxBatchFiles <= 0 {
		config.MaxBatchFiles = 500
	}
	if config.StagingTTL <= 0 {
		config.StagingTTL = time.Hour
	}
	return &PayslipImportService{
		store:    store,
		roster:   roster,
		files:    files,
		signer:   signer,
		sessions: sessions,
		activity: activity,
		metrics:  metrics,
		config:   config,
		logger:   logger,
	}
}

// Stage stores the uploaded files and classifies them by name.
func (s *PayslipImportService) Stage(ctx context.Context, actor models.Actor, files []PayslipFile) (*PayslipSession, error) {
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one file is required")
	}
	if len(files) > s.config.MaxBatchFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a batch accepts at most %d files", s.config.MaxBatchFiles))
	}

	session := &PayslipSession{ID: uuid.NewString(), CreatedBy: actor.ID, CreatedAt: time.Now().UTC()}

	uploads := make([]importer.PayslipUpload, len(files))
	for i, file := range files {
		upload, err := s.stageFile(session.ID, i, file)
		if err != nil {
			s.discard(uploads[:i])
			return nil, err
		}
		uploads[i] = upload
	}

	employees, err := s.roster.ListRoster(ctx, false)
	if err != nil {
		s.discard(uploads)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee roster")
	}
	roster := rosterEntries(employees)

	stored, err := s.storedPeriods(ctx, uploads, roster)
	if err != nil {
		s.discard(uploads)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored payslips")
	}

	items := importer.ClassifyPayslips(uploads, roster, stored, s.config.Rules)
	for i := range items {
		if items[i].Status == importer.PayslipError && items[i].Ref != "" {
			if err := s.files.Delete(items[i].Ref); err != nil {
				s.logger.Warn("failed to drop rejected payslip", zap.String("ref", items[i].Ref), zap.Error(err))
			}
			items[i].Ref = ""
		}
	}
	session.Batch = importer.PayslipBatch{Items: items}
	session.Counts = session.Batch.Counts()

	if err := s.sessions.Save(ctx, payslipSessionPrefix+session.ID, session); err != nil {
		s.discard(uploads)
		return nil, err
	}

	s.logger.Info("payslip batch staged",
		zap.String("session_id", session.ID),
		zap.Int("files", len(items)),
		zap.Int("ready", session.Counts[importer.PayslipReady]),
		zap.Int("duplicates", session.Counts[importer.PayslipDuplicate]),
		zap.Int("errors", session.Counts[importer.PayslipError]))
	return session, nil
}

func (s *PayslipImportService) stageFile(sessionID string, index int, file PayslipFile) (importer.PayslipUpload, error) {
	upload := importer.PayslipUpload{Name: path.Base(strings.ReplaceAll(file.Name, "\\", "/"))}

	data, err := io.ReadAll(io.LimitReader(file.Content, s.config.MaxFileBytes+1))
	if err != nil {
		return upload, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read "+upload.Name)
	}
	if int64(len(data)) > s.config.MaxFileBytes {
		upload.Reject = fmt.Sprintf("file exceeds %d bytes", s.config.MaxFileBytes)
		return upload, nil
	}
	if strings.EqualFold(path.Ext(upload.Name), ".pdf") && !mimetype.Detect(data).Is("application/pdf") {
		upload.Reject = "file is not a PDF document"
		return upload, nil
	}

	ref := fmt.Sprintf("%s/%s/%d%s", payslipStagingDir, sessionID, index, strings.ToLower(path.Ext(upload.Name)))
	if _, err := s.files.Save(ref, data); err != nil {
		return upload, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stage "+upload.Name)
	}
	upload.Ref = ref
	return upload, nil
}

func (s *PayslipImportService) storedPeriods(ctx context.Context, uploads []importer.PayslipUpload, roster []importer.RosterEntry) (map[importer.PeriodKey]bool, error) {
	wanted := make(map[string]struct{})
	for _, upload := range uploads {
		if match, err := importer.MatchFilename(upload.Name, s.config.Rules); err == nil {
			wanted[match.ShortID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(wanted))
	for _, entry := range roster {
		if _, ok := wanted[entry.ShortID]; ok {
			ids = append(ids, entry.ID)
		}
	}

	periods, err := s.store.ListPeriods(ctx, ids)
	if err != nil {
		return nil, err
	}
	stored := make(map[importer.PeriodKey]bool, len(periods))
	for _, p := range periods {
		stored[importer.PeriodKey{EmployeeID: p.EmployeeID, Month: p.Month, Year: p.Year}] = true
	}
	return stored, nil
}

// Get returns a staged or committed batch.
func (s *PayslipImportService) Get(ctx context.Context, id string) (*PayslipSession, error) {
	var session PayslipSession
	if err := s.sessions.Load(ctx, payslipSessionPrefix+id, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SetReplace opts a duplicate file in or out of replacing the stored payslip.
func (s *PayslipImportService) SetReplace(ctx context.Context, id string, index int, replace bool) (*PayslipSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Committed() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payslip batch already committed")
	}
	if err := session.Batch.SetReplace(index, replace); err != nil {
		if errors.Is(err, importer.ErrDecisionIndex) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found in batch")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "only duplicate files can be replaced")
	}
	if err := s.sessions.Save(ctx, payslipSessionPrefix+id, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Commit writes ready files and opted-in duplicates. Committing twice returns
// the first report.
func (s *PayslipImportService) Commit(ctx context.Context, actor models.Actor, id string) (*PayslipSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Committed() {
		return session, nil
	}

	ctx = context.WithoutCancel(ctx)
	writer := &payslipWriter{store: s.store, files: s.files, uploadedBy: actor.ID, logger: s.logger}
	report := importer.CommitPayslips(ctx, writer, &session.Batch, s.logger)
	session.Report = &report
	s.metrics.RecordPayslipReport(report)

	written := make(map[string]struct{}, len(report.Written))
	for _, item := range report.Written {
		written[item.Ref] = struct{}{}
	}
	for _, item := range session.Batch.Items {
		if _, ok := written[item.Ref]; ok || item.Ref == "" {
			continue
		}
		if err := s.files.Delete(item.Ref); err != nil {
			s.logger.Warn("failed to drop staged payslip", zap.String("ref", item.Ref), zap.Error(err))
		}
	}

	if n := report.Imported + report.Replaced; n > 0 {
		s.activity.Record(ctx, actor, models.ActivityPayslipBatch, "payslips", &session.ID,
			fmt.Sprintf("Lançou %d contracheque(s) em lote.", n))
	}
	s.logger.Info("payslip batch committed",
		zap.String("session_id", session.ID),
		zap.Int("imported", report.Imported),
		zap.Int("replaced", report.Replaced),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))

	if err := s.sessions.Save(ctx, payslipSessionPrefix+id, session); err != nil {
		s.logger.Warn("payslip result not retained", zap.String("session_id", id), zap.Error(err))
	}
	return session, nil
}

// Abandon discards a batch and its staged files.
func (s *PayslipImportService) Abandon(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !session.Committed() {
		for _, item := range session.Batch.Items {
			if item.Ref == "" {
				continue
			}
			if err := s.files.Delete(item.Ref); err != nil {
				s.logger.Warn("failed to drop staged payslip", zap.String("ref", item.Ref), zap.Error(err))
			}
		}
	}
	return s.sessions.Delete(ctx, payslipSessionPrefix+id)
}

// ListByEmployee returns the stored payslips of an employee.
func (s *PayslipImportService) ListByEmployee(ctx context.Context, employeeID string) ([]models.Payslip, error) {
	payslips, err := s.store.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payslips")
	}
	return payslips, nil
}

// DownloadLink signs a temporary link to a stored payslip.
func (s *PayslipImportService) DownloadLink(ctx context.Context, payslipID string) (*PayslipDownload, error) {
	payslip, err := s.store.FindByID(ctx, payslipID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payslip not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payslip")
	}
	token, expiresAt, err := s.signer.Generate(payslip.ID, payslip.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &PayslipDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// OpenDownload resolves a signed token to the stored file. The caller closes
// the returned file.
func (s *PayslipImportService) OpenDownload(token string) (*os.File, string, error) {
	signed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}
	file, err := s.files.Open(signed.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "payslip file not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open payslip")
	}
	return file, path.Base(signed.Path), nil
}

// CleanupStaging removes staged files older than the staging TTL.
func (s *PayslipImportService) CleanupStaging() (int, error) {
	deleted, err := s.files.CleanupOlderThan(payslipStagingDir, s.config.StagingTTL)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("staged payslips removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

// RunCleanup calls CleanupStaging on every tick until ctx is done.
func (s *PayslipImportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupStaging(); err != nil {
				s.logger.Warn("staged payslip cleanup failed", zap.Error(err))
			}
		}
	}
}

func (s *PayslipImportService) discard(uploads []importer.PayslipUpload) {
	for _, upload := range uploads {
		if upload.Ref == "" {
			continue
		}
		if err := s.files.Delete(upload.Ref); err != nil {
			s.logger.Warn("failed to drop staged payslip", zap.String("ref", upload.Ref), zap.Error(err))
		}
	}
}

// payslipWriter moves staged files into place and upserts their rows.
type payslipWriter struct {
	store      payslipStore
	files      payslipFileStore
	uploadedBy string
	logger     *zap.Logger
}

func (w *payslipWriter) UpsertMany(ctx context.Context, records []importer.PayslipRecord) error {
	payslips := make([]models.Payslip, 0, len(records))
	moved := make([]string, 0, len(records))
	var uploadedBy *string
	if w.uploadedBy != "" {
		uploadedBy = &w.uploadedBy
	}

	for _, record := range records {
		final := fmt.Sprintf("%s/%04d-%02d-%s%s", record.EmployeeID, record.Year, record.Month, uuid.NewString()[:8], strings.ToLower(path.Ext(record.FileName)))
		if err := w.files.Move(record.Ref, final); err != nil {
			w.rollback(moved)
			return err
		}
		moved = append(moved, final)
		payslips = append(payslips, models.Payslip{
			EmployeeID: record.EmployeeID,
			Month:      record.Month,
			Year:       record.Year,
			FilePath:   final,
			FileName:   record.FileName,
			UploadedBy: uploadedBy,
		})
	}

	if err := w.store.UpsertMany(ctx, payslips); err != nil {
		w.rollback(moved)
		return err
	}
	return nil
}

func (w *payslipWriter) rollback(paths []string) {
	for _, p := range paths {
		if err := w.files.Delete(p); err != nil {
			w.logger.Warn("failed to remove payslip after failed write", zap.String("path", p), zap.Error(err))
		}
	}
}
