package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LogStorage manages the per build files under the work root
type LogStorage struct {
	BaseDir string
}

// NewLogStorage creates a storage handler rooted at baseDir
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// Path joins rel onto the base directory
func (ls *LogStorage) Path(rel ...string) string {
	return filepath.Join(append([]string{ls.BaseDir}, rel...)...)
}

// EnsureDir creates the directory rel (and parents) if missing
func (ls *LogStorage) EnsureDir(rel string) (string, error) {
	dir := ls.Path(rel)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	return dir, nil
}

// OpenLog opens dir/name for appending, creating it if needed
func (ls *LogStorage) OpenLog(dir, name string) (*os.File, error) {
	path := ls.Path(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return f, nil
}

// SaveJSON writes v as indented JSON with sorted keys to dir/name
func (ls *LogStorage) SaveJSON(dir, name string, v any) (string, error) {
	data, err := PrettyJSON(v)
	if err != nil {
		return "", err
	}
	return ls.Save(dir, name, data)
}

// Save writes data to dir/name, replacing an existing file
func (ls *LogStorage) Save(dir, name string, data []byte) (string, error) {
	full, err := ls.EnsureDir(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(full, Sanitize(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// PrettyJSON encodes v with two space indentation and object keys sorted at
// every level, raw JSON included. Raw bytes that are not JSON come back
// unchanged
func PrettyJSON(v any) ([]byte, error) {
	raw, isRaw := v.([]byte)
	if rm, ok := v.(json.RawMessage); ok {
		raw, isRaw = rm, true
	}
	if !isRaw {
		var err error
		if raw, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
	}

	tree, err := decodeTree(raw)
	if err != nil {
		if isRaw {
			return raw, nil
		}
		return nil, fmt.Errorf("encode json: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// decodeTree decodes exactly one JSON value into maps and slices, keeping
// numbers as written
func decodeTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after json value")
	}
	return tree, nil
}

// Sanitize removes characters that do not belong in a file name
func Sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "file"
	}
	return string(clean)
}
