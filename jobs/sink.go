package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// logSink appends JSON-encoded events to a job's log file.
// It is owned by the job's goroutine and needs no locking.
type logSink struct {
	file *os.File
	enc  *json.Encoder
}

func openLogSink(dir, jobID string) (*logSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create job log dir: %w", err)
	}
	f, err := os.OpenFile(LogPath(dir, jobID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open job log: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &logSink{file: f, enc: enc}, nil
}

// LogPath returns the log file location of a job.
func LogPath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".log")
}

func (s *logSink) write(ev Event) error {
	return s.enc.Encode(ev)
}

func (s *logSink) close() error {
	return s.file.Close()
}
