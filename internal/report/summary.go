package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TFMV/fim/internal/integrity"
	"gopkg.in/yaml.v3"
)

// Format selects the rendering of a Summary.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. An empty name means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q (text, json, yaml)", s)
}

// Summary is the outcome of one scan.
type Summary struct {
	Baseline  string             `json:"baseline" yaml:"baseline"`
	Roots     []string           `json:"roots" yaml:"roots"`
	Algorithm string             `json:"hash_algorithm" yaml:"hash_algorithm"`
	ScannedAt time.Time          `json:"scanned_at" yaml:"scanned_at"`
	Stats     integrity.Stats    `json:"stats" yaml:"stats"`
	Counts    map[string]int     `json:"counts" yaml:"counts"`
	Changes   []integrity.Change `json:"changes" yaml:"changes"`
}

// NewSummary counts the changes per type.
func NewSummary(baseline string, roots []string, alg integrity.Algorithm, stats integrity.Stats, changes []integrity.Change) Summary {
	counts := map[string]int{
		string(integrity.Created):  0,
		string(integrity.Deleted):  0,
		string(integrity.Modified): 0,
	}
	for _, c := range changes {
		counts[string(c.Type)]++
	}
	if changes == nil {
		changes = []integrity.Change{}
	}
	return Summary{
		Baseline:  baseline,
		Roots:     roots,
		Algorithm: string(alg),
		ScannedAt: time.Now().UTC(),
		Stats:     stats,
		Counts:    counts,
		Changes:   changes,
	}
}

// Write renders s to w.
func Write(w io.Writer, format Format, s Summary) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, s)
	}
}

// WriteFile renders s into path, creating its directory.
func WriteFile(path string, format Format, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Write(f, format, s); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func writeText(w io.Writer, s Summary) error {
	var sb strings.Builder
	sb.WriteString("File Integrity Scan\n")
	sb.WriteString(fmt.Sprintf("Scanned at: %s\n", s.ScannedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Baseline:   %s\n", s.Baseline))
	sb.WriteString(fmt.Sprintf("Roots:      %s\n", strings.Join(s.Roots, ", ")))
	sb.WriteString(fmt.Sprintf("Algorithm:  %s\n", s.Algorithm))
	sb.WriteString(fmt.Sprintf("Files:      %d hashed, %d skipped (%d bytes in %s)\n",
		s.Stats.FilesHashed, s.Stats.FilesSkipped, s.Stats.BytesHashed, s.Stats.Elapsed.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Changes:    %d created, %d deleted, %d modified\n\n",
		s.Counts[string(integrity.Created)], s.Counts[string(integrity.Deleted)], s.Counts[string(integrity.Modified)]))
	for _, c := range s.Changes {
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
