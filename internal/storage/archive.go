package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/news"
)

var (
	kst       = time.FixedZone("KST", 9*60*60)
	monthFile = regexp.MustCompile(`^\d{4}-\d{2}\.json$`)
)

// Index describes the monthly archive for the website.
type Index struct {
	Months      []string `json:"months"`
	TotalCount  int      `json:"total_count"`
	LastUpdated string   `json:"last_updated"`
}

// Archive appends articles to per-month JSON files under Dir and keeps
// Dir/index.json current.
type Archive struct {
	Dir string
	Now func() time.Time
}

func NewArchive(dir string) *Archive {
	if dir == "" {
		dir = "data"
	}
	return &Archive{Dir: dir, Now: time.Now}
}

func (a *Archive) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// MonthPath returns the archive file for t's month in Korea time.
func (a *Archive) MonthPath(t time.Time) string {
	return filepath.Join(a.Dir, t.In(kst).Format("2006-01")+".json")
}

// Update merges records into the current month's file, skipping URLs already
// archived, then rebuilds the index. It returns the number of added records.
func (a *Archive) Update(records []news.Record) (int, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("create archive directory: %w", err)
	}
	path := a.MonthPath(a.now())

	existing, err := readRecords(path)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.OriginalURL] = struct{}{}
	}
	added := 0
	for _, r := range records {
		if _, ok := seen[r.OriginalURL]; ok {
			continue
		}
		seen[r.OriginalURL] = struct{}{}
		existing = append(existing, r)
		added++
	}

	if err := writeJSON(path, existing, "    "); err != nil {
		return 0, err
	}
	logger.Info("monthly archive updated", "path", path, "added", added, "total", len(existing))

	if _, err := a.UpdateIndex(); err != nil {
		return added, err
	}
	return added, nil
}

// UpdateIndex rescans the month files and rewrites index.json.
func (a *Archive) UpdateIndex() (Index, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return Index{}, fmt.Errorf("read archive directory: %w", err)
	}

	idx := Index{Months: []string{}}
	for _, e := range entries {
		if e.IsDir() || !monthFile.MatchString(e.Name()) {
			continue
		}
		records, err := readRecords(filepath.Join(a.Dir, e.Name()))
		if err != nil {
			return Index{}, err
		}
		idx.Months = append(idx.Months, strings.TrimSuffix(e.Name(), ".json"))
		idx.TotalCount += len(records)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(idx.Months)))
	idx.LastUpdated = a.now().In(kst).Format(time.RFC3339)

	if err := writeJSON(filepath.Join(a.Dir, "index.json"), idx, "  "); err != nil {
		return Index{}, err
	}
	return idx, nil
}

func readRecords(path string) ([]news.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []news.Record
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("archive file is not valid JSON, starting over", "path", path, "error", err)
		_ = os.WriteFile(path+".broken", data, 0o644)
		return nil, nil
	}
	return records, nil
}

// writeJSON writes v atomically through a temporary file. Non-ASCII text is
// written as is.
func writeJSON(path string, v any, indent string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}
