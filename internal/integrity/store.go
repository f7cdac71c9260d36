package integrity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// rawPathPrefix marks a stored path that is base64 of the raw bytes. JSON
// strings are UTF-8, and file names on Linux need not be.
const rawPathPrefix = "base64:"

// encodePath maps any path to a valid UTF-8 string. Paths that already
// start with rawPathPrefix are encoded too, so decodePath is its exact
// inverse.
func encodePath(p string) string {
	if utf8.ValidString(p) && !strings.HasPrefix(p, rawPathPrefix) {
		return p
	}
	return rawPathPrefix + base64.StdEncoding.EncodeToString([]byte(p))
}

func decodePath(s string) (string, error) {
	enc, ok := strings.CutPrefix(s, rawPathPrefix)
	if !ok {
		return s, nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Save writes records to dest as an indented JSON object keyed by path.
// Paths that are not valid UTF-8 are stored as "base64:" plus their bytes.
// encoding/json sorts map keys, so the output is deterministic. The data is
// written to a temporary file in the destination directory and renamed
// into place.
func Save(records Records, dest string) error {
	stored := make(Records, len(records))
	for key, rec := range records {
		rec.Path = encodePath(rec.Path)
		stored[encodePath(key)] = rec
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create baseline directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary baseline: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write baseline: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync baseline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close baseline: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod baseline: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace baseline %s: %w", dest, err)
	}
	return nil
}

// storedRecord uses pointers so that absent fields can be told apart from
// zero values.
type storedRecord struct {
	Path  *string  `json:"path"`
	Hash  *string  `json:"hash"`
	Size  *int64   `json:"size"`
	Mtime *float64 `json:"mtime"`
}

// Load reads a baseline written by Save. Any problem with the file is
// reported as a *FormatError.
func Load(path string) (Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "cannot read baseline (create one with the baseline command)", Err: err}
	}

	var raw map[string]storedRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, &FormatError{Path: path, Reason: "malformed JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &FormatError{Path: path, Reason: "unexpected data after the baseline object", Err: err}
	}
	if raw == nil {
		return nil, &FormatError{Path: path, Reason: "expected a JSON object of file records"}
	}

	records := make(Records, len(raw))
	for key, rec := range raw {
		switch {
		case rec.Path == nil:
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("record %q is missing %q", key, "path")}
		case rec.Hash == nil:
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("record %q is missing %q", key, "hash")}
		case rec.Size == nil:
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("record %q is missing %q", key, "size")}
		case rec.Mtime == nil:
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("record %q is missing %q", key, "mtime")}
		case *rec.Path != key:
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("record key %q does not match its path %q", key, *rec.Path)}
		}
		filePath, err := decodePath(key)
		if err != nil {
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("record %q has an invalid encoded path", key), Err: err}
		}
		records[filePath] = Record{Path: filePath, Hash: *rec.Hash, Size: *rec.Size, Mtime: *rec.Mtime}
	}
	return records, nil
}
