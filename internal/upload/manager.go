package upload

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultMaxFiles caps the staged set.
	DefaultMaxFiles = 10
	// DefaultMaxFileSize is the per-file ceiling advertised to users (100 MB).
	DefaultMaxFileSize int64 = 100 * 1024 * 1024
)

// allowedExtensions is the intake whitelist, mapped to the content type sent
// to the analysis service.
var allowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"bmp":  "image/bmp",
	"txt":  "text/plain",
	"rtf":  "application/rtf",
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsAllowed reports whether name carries a whitelisted extension.
func IsAllowed(name string) bool {
	_, ok := allowedExtensions[Extension(name)]
	return ok
}

// ContentType returns the MIME type registered for the extension of name.
func ContentType(name string) string {
	if ct, ok := allowedExtensions[Extension(name)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Manager holds the ordered staged file set.
type Manager struct {
	mu          sync.RWMutex
	files       []models.StagedFile
	maxFiles    int
	maxFileSize int64
	log         *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLimits overrides the file count cap and per-file byte ceiling.
func WithLimits(maxFiles int, maxFileSize int64) Option {
	return func(m *Manager) {
		if maxFiles > 0 && maxFiles <= DefaultMaxFiles {
			m.maxFiles = maxFiles
		}
		if maxFileSize > 0 {
			m.maxFileSize = maxFileSize
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		m.log = log.Named("upload")
	}
}

// NewManager creates an empty staged set.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		files:       make([]models.StagedFile, 0, DefaultMaxFiles),
		maxFiles:    DefaultMaxFiles,
		maxFileSize: DefaultMaxFileSize,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Accept validates candidates in order and appends the valid ones.
// Invalid candidates never touch the set; each gets a rejection entry.
func (m *Manager) Accept(candidates []models.Candidate) *AcceptReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := &AcceptReport{
		Accepted: make([]models.StagedFile, 0, len(candidates)),
		Rejected: make([]models.Rejection, 0),
	}

	for _, c := range candidates {
		reason, ok := m.check(c)
		if !ok {
			report.Rejected = append(report.Rejected, models.Rejection{Name: c.Name, Reason: reason})
			continue
		}

		file := models.StagedFile{
			ID:        uuid.New().String(),
			Name:      c.Name,
			Size:      c.Size,
			Extension: Extension(c.Name),
			StagedAt:  time.Now(),
			Content:   c.Content,
		}
		m.files = append(m.files, file)
		report.Accepted = append(report.Accepted, file)
	}

	if len(report.Rejected) > 0 {
		m.log.Info("candidates rejected",
			zap.Int("accepted", len(report.Accepted)),
			zap.Int("rejected", len(report.Rejected)),
		)
	}

	return report
}

// check must be called with the lock held.
func (m *Manager) check(c models.Candidate) (models.ValidationReason, bool) {
	if !IsAllowed(c.Name) {
		return models.ReasonUnsupportedFormat, false
	}
	if c.Size > m.maxFileSize {
		return models.ReasonFileTooLarge, false
	}
	if len(m.files) >= m.maxFiles {
		return models.ReasonFileLimitReached, false
	}
	return "", true
}

// Remove drops the file at index, preserving the order of the rest.
// An out-of-range index is a no-op and returns false.
func (m *Manager) Remove(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.files) {
		return false
	}
	copy(m.files[index:], m.files[index+1:])
	m.files[len(m.files)-1] = models.StagedFile{} // release content
	m.files = m.files[:len(m.files)-1]
	return true
}

// Reset empties the set, releasing every held byte.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make([]models.StagedFile, 0, DefaultMaxFiles)
}

// Files returns a copy of the staged set in submission order.
func (m *Manager) Files() []models.StagedFile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.StagedFile, len(m.files))
	copy(out, m.files)
	return out
}

// Len returns the number of staged files.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// MaxFiles returns the configured cap.
func (m *Manager) MaxFiles() int {
	return m.maxFiles
}
