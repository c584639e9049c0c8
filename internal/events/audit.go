package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxAuditSize is the rotation threshold (100MB).
	DefaultMaxAuditSize = 100 * 1024 * 1024
	// ArchiveDir holds rotated audit files, next to the active one.
	ArchiveDir = "archive"
)

// AuditEntry is a single line of the append-only JSONL audit log.
type AuditEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	JobID     string                 `json:"job_id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AuditLogger appends lifecycle events to a JSONL file with size-based
// rotation. It implements Subscriber so it can be attached to the bus.
type AuditLogger struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	logPath     string
}

// NewAuditLogger opens (or creates) the audit log at logPath.
func NewAuditLogger(logPath string, maxSize int64) (*AuditLogger, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxAuditSize
	}

	logger := &AuditLogger{
		logPath: logPath,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	if err := logger.openLogFile(); err != nil {
		return nil, err
	}
	return logger, nil
}

func (l *AuditLogger) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}

	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Notify implements Subscriber. Write failures are swallowed: the audit log
// is observability, never control flow.
func (l *AuditLogger) Notify(e Event) {
	entry := AuditEntry{
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		Details:   e.Data,
	}
	if jobID, ok := e.Data["job_id"].(string); ok {
		entry.JobID = jobID
	}
	if name, ok := e.Data["name"].(string); ok {
		entry.Name = name
	}
	_ = l.WriteEntry(&entry)
}

// WriteEntry appends one entry, rotating first if the file would exceed the
// size limit.
func (l *AuditLogger) WriteEntry(entry *AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate audit log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}

	l.currentSize += int64(n)
	return nil
}

func (l *AuditLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.logPath), ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	archiveName := fmt.Sprintf("%s.%s", filepath.Base(l.logPath), timestamp)
	if err := os.Rename(l.logPath, filepath.Join(archiveDir, archiveName)); err != nil {
		return fmt.Errorf("archive audit log: %w", err)
	}

	return l.openLogFile()
}

// Close releases the underlying file.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
