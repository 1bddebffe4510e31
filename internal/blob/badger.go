package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"articlehub/internal/store"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

const badgerScheme = "badger://"

// BadgerStore keeps gzip-compressed payloads in Badger under
// "<container>/<key>". Locators look like badger://article/<key>.
type BadgerStore struct {
	db        *badger.DB
	container string
	logger    *zap.Logger
}

// OpenBadger opens the database at path. An empty path runs in memory.
func OpenBadger(path, container string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Silence default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return NewBadgerStore(db, container, logger), nil
}

// NewBadgerStore wraps an already opened database.
func NewBadgerStore(db *badger.DB, container string, logger *zap.Logger) *BadgerStore {
	if container == "" {
		container = DefaultContainer
	}
	return &BadgerStore{db: db, container: container, logger: logger}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Upload stores content under key and returns its locator.
func (s *BadgerStore) Upload(ctx context.Context, content string, key string) (string, error) {
	compressed, err := compress(content)
	if err != nil {
		return "", err
	}

	objectKey := s.container + "/" + key
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(objectKey), compressed))
	})
	if err != nil {
		return "", store.Unavailable("badger upload", err)
	}
	return badgerScheme + objectKey, nil
}

// Fetch resolves a locator produced by Upload.
func (s *BadgerStore) Fetch(ctx context.Context, locator string) (string, error) {
	objectKey, err := s.objectKey(locator)
	if err != nil {
		return "", err
	}

	var compressed []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(objectKey))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%s: %w", locator, ErrNotFound)
	} else if err != nil {
		return "", store.Unavailable("badger fetch", err)
	}
	return decompress(compressed)
}

// List returns the locators of every payload in the container.
func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	var locators []string
	prefix := []byte(s.container + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			locators = append(locators, badgerScheme+string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, store.Unavailable("badger list", err)
	}
	return locators, nil
}

// Delete removes the payload behind locator. Deleting a missing payload is
// not an error.
func (s *BadgerStore) Delete(ctx context.Context, locator string) error {
	objectKey, err := s.objectKey(locator)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(objectKey))
	})
	if err != nil {
		return store.Unavailable("badger delete", err)
	}
	return nil
}

// RunGC reclaims value-log space every interval until ctx is done.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing worth collecting.
			if err := s.db.RunValueLogGC(0.7); err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
				s.logger.Warn("Badger value log GC failed", zap.Error(err))
			}
		}
	}
}

func (s *BadgerStore) objectKey(locator string) (string, error) {
	objectKey, ok := strings.CutPrefix(locator, badgerScheme)
	if !ok || !strings.HasPrefix(objectKey, s.container+"/") || len(objectKey) == len(s.container)+1 {
		return "", fmt.Errorf("%q: %w", locator, ErrInvalidLocator)
	}
	return objectKey, nil
}

func compress(content string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, content); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("failed to decompress payload: %w", err)
	}
	return string(out), nil
}
