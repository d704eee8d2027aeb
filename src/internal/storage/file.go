package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"storefront-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

var errCorruptDocument = fmt.Errorf("%w: corrupt session file", models.ErrStorageGet)

// fileStorage keeps every key of a profile in a single JSON document on disk.
// Writes go to a temp file which is renamed over the document.
type fileStorage struct {
	mu   sync.Mutex
	dir  string
	path string
}

func NewFileStorage(dir, profile string) (Storage, error) {
	if dir == "" {
		dir = ".session"
	}
	if profile == "" {
		profile = "default"
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	return &fileStorage{
		dir:  dir,
		path: filepath.Join(dir, profile+".json"),
	}, nil
}

func (f *fileStorage) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", err
	}

	value, ok := values[key]
	if !ok {
		return "", models.ErrStorageKeyNotFound
	}

	return value, nil
}

func (f *fileStorage) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readForWrite()
	if err != nil {
		return models.ErrStorageSet
	}

	values[key] = value
	if err := f.write(values); err != nil {
		return models.ErrStorageSet
	}

	return nil
}

func (f *fileStorage) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readForWrite()
	if err != nil {
		return models.ErrStorageDelete
	}

	for _, key := range keys {
		delete(values, key)
	}

	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("path", f.path).Error("Failed to remove session file")
			return models.ErrStorageDelete
		}
		return nil
	}

	if err := f.write(values); err != nil {
		return models.ErrStorageDelete
	}

	return nil
}

func (f *fileStorage) Ping(_ context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", models.ErrStorageUnavailable, f.dir)
	}
	return nil
}

// readForWrite treats an undecodable document as empty so the next write
// replaces it instead of failing forever.
func (f *fileStorage) readForWrite() (map[string]string, error) {
	values, err := f.read()
	if errors.Is(err, errCorruptDocument) {
		logrus.WithField("path", f.path).Warn("Discarding corrupt session file")
		return map[string]string{}, nil
	}
	return values, err
}

func (f *fileStorage) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		logrus.WithError(err).WithField("path", f.path).Error("Failed to read session file")
		return nil, models.ErrStorageGet
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		logrus.WithError(err).WithField("path", f.path).Error("Failed to decode session file")
		return nil, errCorruptDocument
	}

	return values, nil
}

func (f *fileStorage) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".session-*")
	if err != nil {
		logrus.WithError(err).WithField("dir", f.dir).Error("Failed to create temp session file")
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		logrus.WithError(err).Error("Failed to write temp session file")
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		logrus.WithError(err).WithField("path", f.path).Error("Failed to replace session file")
		return err
	}

	return nil
}
