package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type entry struct {
	High float64   `json:"highest_close"`
	Date time.Time `json:"last_update"`
}

func TestJSONFile_MissingFileIsEmpty(t *testing.T) {
	f := NewJSONFile[entry](filepath.Join(t.TempDir(), "nope.json"))
	got, err := f.Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty map, got %v", got)
	}
}

func TestJSONFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "trailing_state.json")
	f := NewJSONFile[entry](path)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := f.Save(map[string]entry{"AAPL": {High: 191.5, Date: day}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := f.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got["AAPL"].High != 191.5 || !got["AAPL"].Date.Equal(day) {
		t.Errorf("Unexpected entry: %+v", got["AAPL"])
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("Expected mode 0644, got %v", info.Mode().Perm())
	}

	// 임시 파일이 남지 않아야 함
	files, _ := os.ReadDir(filepath.Dir(path))
	if len(files) != 1 {
		t.Errorf("Expected only the state file, got %d entries", len(files))
	}
}

func TestJSONFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop_loss_log.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewJSONFile[entry](path).Load()
	var cse *CorruptStateError
	if !errors.As(err, &cse) {
		t.Fatalf("Expected CorruptStateError, got %v", err)
	}
	if cse.Path != path {
		t.Errorf("Expected path %s, got %s", path, cse.Path)
	}
}

func TestJSONFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := NewJSONFile[entry](path).Load()
	if err != nil || len(got) != 0 {
		t.Errorf("Expected empty map, got %v, %v", got, err)
	}
}
