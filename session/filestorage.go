package session

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileStorage persists session state to a JSON file so it survives process
// restarts. Writes flush immediately; the file carries credentials, so it is
// created owner-readable only.
type FileStorage struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("[NewFileStorage] path is required")
	}
	fs := &FileStorage{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStorage] read")
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		// A corrupt session file starts a fresh session rather than
		// wedging every launch.
		fs.data = make(map[string]string)
	}
	return fs, nil
}

func (f *FileStorage) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *FileStorage) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.flush()
}

func (f *FileStorage) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	f.flush()
}

func (f *FileStorage) flush() {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return
	}
	_ = os.WriteFile(f.path, raw, 0o600)
}

var _ Storage = (*FileStorage)(nil)
