package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/siomako12099999999999999999/XRANKING/internal/record"
)

// SpillFile persists buffer contents across process runs. Records that
// cannot be flushed before exit are written here and reloaded by the next
// ingestion or flush run, so a storage outage never loses scraped data.
type SpillFile struct {
	path   string
	logger *slog.Logger
}

// NewSpillFile returns a spill file at path.
func NewSpillFile(path string, logger *slog.Logger) *SpillFile {
	return &SpillFile{path: path, logger: logger}
}

// Save writes recs to disk. An empty slice removes the file; a reload then
// finds nothing pending.
func (s *SpillFile) Save(recs []record.PostRecord) error {
	if len(recs) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove spill file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode spill records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create spill dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write spill file: %w", err)
	}

	s.logger.Info("buffer: spilled unpersisted records to disk", "count", len(recs), "path", s.path)
	return nil
}

// Load reads the spilled records. A missing file means nothing is pending.
func (s *SpillFile) Load() ([]record.PostRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spill file: %w", err)
	}

	var recs []record.PostRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode spill file: %w", err)
	}
	return recs, nil
}
