package replylog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"friendbot/pkg/logger"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("replies")

// Entry is one recorded reply
type Entry struct {
	Submission string    `json:"submission"`
	Chapter    int       `json:"chapter"`
	RepliedAt  time.Time `json:"replied_at"`
}

// Log is the persisted reply ledger
type Log struct {
	path   string
	db     *bolt.DB
	logger logger.Logger
	mu     sync.RWMutex
	now    func() time.Time
}

// Open opens or creates the ledger at path
func Open(path string, log logger.Logger) (*Log, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for reply log: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open reply log: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Log{
		path:   path,
		db:     db,
		logger: log.WithField("reply_log", path),
		now:    time.Now,
	}, nil
}

// Has reports whether a reply was recorded for the submission
func (l *Log) Has(submission string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var found bool
	err := l.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketName).Get([]byte(submission)) != nil
		return nil
	})
	return found, err
}

// Mark records a reply to the submission for the given chapter
func (l *Log) Mark(submission string, chapter int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(Entry{
		Submission: submission,
		Chapter:    chapter,
		RepliedAt:  l.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode reply entry: %w", err)
	}

	err = l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(submission), data)
	})
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}

	l.logger.DebugWithFields("Reply recorded", map[string]interface{}{
		"submission": submission,
		"chapter":    chapter,
	})
	return nil
}

// List returns every entry ordered by reply time
func (l *Log) List() ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt entry %q: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RepliedAt.Before(entries[j].RepliedAt)
	})
	return entries, nil
}

// Close closes the underlying database
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// DefaultPath returns the ledger location inside the platform data directory
func DefaultPath() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "friendbot")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "friendbot")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "friendbot")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "friendbot")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(dataDir, "replies.db"), nil
}
