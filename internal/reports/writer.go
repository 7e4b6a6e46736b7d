// Package reports persists run reports to the operator-facing reports
// directory.
package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const filePrefix = "daily_update_"

// Writer writes run reports as plain text files, one per run date.
type Writer struct {
	dir string
	log zerolog.Logger
}

// NewWriter creates a writer rooted at dir, creating it if needed.
func NewWriter(dir string, log zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return &Writer{
		dir: dir,
		log: log.With().Str("component", "reports").Logger(),
	}, nil
}

// Write persists a run report named after the run date and returns its path.
// A rerun for the same date overwrites the earlier report.
func (w *Writer) Write(date time.Time, content string) (string, error) {
	return w.write(fmt.Sprintf("%s%s.txt", filePrefix, date.Format("20060102")), content)
}

// WriteError persists a fatal-run report. The _ERROR suffix makes failed
// runs stand out in a directory listing without opening a single file.
func (w *Writer) WriteError(date time.Time, content string) (string, error) {
	return w.write(fmt.Sprintf("%s%s_ERROR.txt", filePrefix, date.Format("20060102")), content)
}

func (w *Writer) write(name, content string) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", name, err)
	}
	w.log.Info().Str("path", path).Msg("Report written")
	return path, nil
}

// Latest returns the path and content of the most recent report, by file
// name. Names embed the run date, so lexical order is date order.
func (w *Writer) Latest() (string, string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", "", fmt.Errorf("failed to list reports: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", "", os.ErrNotExist
	}
	sort.Strings(names)

	name := names[len(names)-1]
	path := filepath.Join(w.dir, name)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read report %s: %w", name, err)
	}
	return path, string(content), nil
}
