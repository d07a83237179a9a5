package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrStorage is returned when a result cannot be written.
var ErrStorage = errors.New("storage: write failed")

// timestampLayout has whole-second resolution: YYYYMMDD-HHMMSS.
const timestampLayout = "20060102-150405"

// ResultStore writes generated images into a single results directory.
//
// File names are <base>_<YYYYMMDD-HHMMSS>.png, so two saves of the same base
// name within one second resolve to the same path and the later one wins.
type ResultStore struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewResultStore - 결과 저장소 생성 (디렉터리는 첫 저장 시 생성)
func NewResultStore(dir string) *ResultStore {
	return &ResultStore{dir: dir, now: time.Now}
}

// Dir returns the results directory.
func (s *ResultStore) Dir() string {
	return s.dir
}

// Save writes data under a timestamped name and returns the written path.
func (s *ResultStore) Save(data []byte, baseName string) (string, error) {
	baseName = strings.TrimSpace(baseName)
	if baseName == "" || baseName != filepath.Base(baseName) {
		return "", fmt.Errorf("%w: invalid base name %q", ErrStorage, baseName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: ensure directory %s: %v", ErrStorage, s.dir, err)
	}

	fileName := fmt.Sprintf("%s_%s.png", baseName, s.now().Format(timestampLayout))
	path := filepath.Join(s.dir, fileName)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrStorage, path, err)
	}

	log.Info().Str("path", path).Int("bytes", len(data)).Msg("💾 Result saved")
	return path, nil
}
