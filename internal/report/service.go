package report

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/transparentcare/billcheck/internal/bill"
	"github.com/transparentcare/billcheck/internal/dispute"
	"github.com/transparentcare/billcheck/internal/extraction"
	"github.com/transparentcare/billcheck/internal/pricing"
)

// IDGenerator generates unique IDs for reports
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ErrSuperseded means a newer document was submitted while this
// extraction was in flight; the stale result is discarded rather than
// racing two writes into the same report.
var ErrSuperseded = errors.New("extraction superseded by a newer request")

// Service is the pipeline orchestrator: it sequences extraction,
// parsing, comparison, and letter generation, and owns the only side
// effects in the system (storage, persistence, and the external
// extraction call).
type Service struct {
	db        DB
	storage   Storage
	extractor extraction.Extractor
	table     *pricing.ReferenceTable
	parser    *bill.Parser

	idGenerator IDGenerator
	timeSource  TimeSource

	mu  sync.Mutex
	seq uint64 // latest extraction request; earlier in-flight results are stale
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor extraction.Extractor, storage Storage, table *pricing.ReferenceTable) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		table:       table,
		parser:      bill.NewParser(),
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor extraction.Extractor, storage Storage, table *pricing.ReferenceTable, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		table:       table,
		parser:      bill.NewParser(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "bill"
	}

	return base + ext
}

// Process runs parsing and comparison over one extraction result and
// returns a fresh report. It has no side effects: each call carries its
// own input and returns its own report.
func (s *Service) Process(raw *bill.RawBill) (*BillReport, error) {
	return s.buildReport(s.idGenerator.Generate(), raw)
}

func (s *Service) buildReport(id string, raw *bill.RawBill) (*BillReport, error) {
	parsed, err := s.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing bill: %w", err)
	}

	results, err := pricing.Compare(parsed, s.table)
	if err != nil {
		return nil, fmt.Errorf("comparing charges: %w", err)
	}

	now := s.timeSource.Now()
	return &BillReport{
		ID:        id,
		Bill:      parsed,
		Results:   results,
		State:     StateReady,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ProcessDocument uploads a bill document, extracts it through the
// external vision service, runs the pipeline, and persists the report.
// Only the newest in-flight extraction wins: if another document is
// submitted while this one is out at the extractor, the stale result is
// discarded and ErrSuperseded returned.
func (s *Service) ProcessDocument(filename string, data []byte, contentType string) (*BillReport, error) {
	s.mu.Lock()
	s.seq++
	mySeq := s.seq
	s.mu.Unlock()

	id := s.idGenerator.Generate()

	// Sanitize filename to clean up phone-generated long filenames
	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	raw, err := s.extractor.ExtractBill(data, contentType)
	if err != nil {
		slog.Error("Failed to extract bill",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("extracting bill: %w", err)
	}

	s.mu.Lock()
	stale := mySeq != s.seq
	s.mu.Unlock()
	if stale {
		slog.Warn("Discarding superseded extraction result", "filename", filename)
		s.storage.Delete(savedPath)
		return nil, ErrSuperseded
	}

	rep, err := s.buildReport(id, raw)
	if err != nil {
		s.storage.Delete(savedPath)
		return nil, err
	}
	rep.SourceFile = savedPath
	rep.ContentType = contentType

	if err := s.db.SaveReport(rep); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving report: %w", err)
	}

	return rep, nil
}

// ProcessStructured runs the pipeline on a caller-supplied extraction
// result, skipping the vision service, and persists the report.
func (s *Service) ProcessStructured(raw *bill.RawBill) (*BillReport, error) {
	rep, err := s.Process(raw)
	if err != nil {
		return nil, err
	}

	if err := s.db.SaveReport(rep); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}

	return rep, nil
}

// GenerateLetter renders a dispute letter from a report. It is
// repeatable: regenerating from the same report yields an identical
// body, with only the attached timestamp varying.
func (s *Service) GenerateLetter(rep *BillReport) (*dispute.Letter, error) {
	letter, err := dispute.Generate(rep.Bill, rep.Results)
	if err != nil {
		return nil, err
	}
	letter.GeneratedAt = s.timeSource.Now()
	return letter, nil
}

// GenerateLetterByID generates and persists a letter for a stored
// report, and marks the report's run as letter_generated.
func (s *Service) GenerateLetterByID(id string) (*dispute.Letter, error) {
	rep, err := s.db.GetReport(id)
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	letter, err := s.GenerateLetter(rep)
	if err != nil {
		return nil, err
	}

	if err := s.db.SaveLetter(id, letter); err != nil {
		return nil, fmt.Errorf("saving letter: %w", err)
	}

	// Keep a plain-text copy alongside the source document so the
	// presentation layer can hand it out as a file.
	if _, err := s.storage.Save(fmt.Sprintf("%s_dispute.txt", id), []byte(letter.Body)); err != nil {
		slog.Warn("Failed to save letter text file", "report_id", id, "error", err)
	}

	rep.State = StateLetterGenerated
	rep.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReport(rep); err != nil {
		return nil, fmt.Errorf("updating report: %w", err)
	}

	return letter, nil
}

// GetReport retrieves a report by ID
func (s *Service) GetReport(id string) (*BillReport, error) {
	rep, err := s.db.GetReport(id)
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return rep, nil
}

// ListReports returns all reports
func (s *Service) ListReports() ([]*BillReport, error) {
	reports, err := s.db.ListReports()
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

// GetLetter retrieves the stored letter for a report
func (s *Service) GetLetter(id string) (*dispute.Letter, error) {
	letter, err := s.db.GetLetter(id)
	if err != nil {
		return nil, fmt.Errorf("getting letter: %w", err)
	}
	return letter, nil
}

// GetReportDocument retrieves the source document for a report
func (s *Service) GetReportDocument(id string) ([]byte, string, error) {
	rep, err := s.db.GetReport(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting report: %w", err)
	}
	if rep.SourceFile == "" {
		return nil, "", fmt.Errorf("report %s has no source document", id)
	}

	data, err := s.storage.Get(rep.SourceFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting report document: %w", err)
	}

	return data, rep.ContentType, nil
}

// DeleteReport removes a report, its letter, and its stored files
func (s *Service) DeleteReport(id string) error {
	rep, err := s.db.GetReport(id)
	if err != nil {
		return fmt.Errorf("getting report for deletion: %w", err)
	}

	if rep.SourceFile != "" {
		if err := s.storage.Delete(rep.SourceFile); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete document", "filename", rep.SourceFile, "error", err)
		}
	}
	if err := s.storage.Delete(fmt.Sprintf("%s_dispute.txt", id)); err == nil {
		slog.Info("Deleted letter text file", "report_id", id)
	}

	if err := s.db.DeleteLetter(id); err != nil {
		slog.Warn("Failed to delete letter", "report_id", id, "error", err)
	}

	if err := s.db.DeleteReport(id); err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	return nil
}
