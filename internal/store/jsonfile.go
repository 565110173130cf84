package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// CorruptStateError 상태 파일을 해석할 수 없음. 빈 상태로 덮어쓰지 않도록 실행을 중단한다.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state file %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// JSONFile persists a symbol-keyed map as one JSON document
type JSONFile[T any] struct {
	path  string
	perm  os.FileMode
	quiet bool
}

// NewJSONFile 생성자
func NewJSONFile[T any](path string) *JSONFile[T] {
	return &JSONFile[T]{path: path, perm: 0644}
}

// WithPerm sets the file mode of saved files (credentials: 0600).
// It also silences the save log line.
func (f *JSONFile[T]) WithPerm(perm os.FileMode) *JSONFile[T] {
	f.perm = perm
	f.quiet = true
	return f
}

// Path 파일 경로
func (f *JSONFile[T]) Path() string {
	return f.path
}

// Load reads the map. A missing or empty file is an empty map.
func (f *JSONFile[T]) Load() (map[string]T, error) {
	entries := make(map[string]T)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &CorruptStateError{Path: f.path, Err: err}
	}
	return entries, nil
}

// Save writes the map atomically (temp file + rename)
func (f *JSONFile[T]) Save(entries map[string]T) error {
	if entries == nil {
		entries = make(map[string]T)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // rename 성공 후에는 no-op

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, f.perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", f.path, err)
	}

	if !f.quiet {
		log.Printf("[STATE] Saved %d entries to %s", len(entries), f.path)
	}
	return nil
}
