package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	xxhash "github.com/OneOfOne/xxhash"
	"github.com/dgraph-io/badger/v3"

	"github.com/RyanBlaney/sonido-aureo/analysis"
	"github.com/RyanBlaney/sonido-aureo/logging"
)

// ErrNotFound is returned when no result is stored for a file name
var ErrNotFound = errors.New("history entry not found")

var resultPrefix = []byte("result/")

// Entry is one stored analysis
type Entry struct {
	Result     *analysis.Result `json:"result"`
	AnalyzedAt time.Time        `json:"analyzedAt"`
}

// Options configures where the history lives
type Options struct {
	Dir      string
	InMemory bool
}

// Store keeps at most one result per file name, newest analysis wins
type Store struct {
	db     *badger.DB
	logger logging.Logger
	now    func() time.Time
}

// Open opens (or creates) a history store
func Open(opts Options) (*Store, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "history_store",
		"dir":       opts.Dir,
		"in_memory": opts.InMemory,
	})

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, fmt.Errorf("history directory must be set")
		}
		badgerOpts = badger.DefaultOptions(opts.Dir)
	}
	badgerOpts = badgerOpts.WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		logger.Error(err, "Failed to open history database")
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	logger.Debug("History store opened")

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(fileName string) []byte {
	key := make([]byte, len(resultPrefix)+8)
	copy(key, resultPrefix)
	binary.BigEndian.PutUint64(key[len(resultPrefix):], xxhash.ChecksumString64(fileName))
	return key
}

// Put stores result, replacing any earlier analysis of the same file name
func (s *Store) Put(result *analysis.Result) (*Entry, error) {
	if result == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}

	entry := &Entry{Result: result, AnalyzedAt: s.now().UTC()}
	value, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history entry for %s: %w", result.FileName, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(result.FileName), value)
	})
	if err != nil {
		s.logger.Error(err, "Failed to store history entry", logging.Fields{"file_name": result.FileName})
		return nil, fmt.Errorf("failed to store history entry for %s: %w", result.FileName, err)
	}

	s.logger.Debug("History entry stored", logging.Fields{
		"file_name": result.FileName,
		"bytes":     len(value),
	})

	return entry, nil
}

// Get returns the stored analysis of fileName
func (s *Store) Get(fileName string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(fileName))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history entry for %s: %w", fileName, err)
	}
	// 64-bit key collision: the slot belongs to another file
	if entry.Result == nil || entry.Result.FileName != fileName {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}
	return &entry, nil
}

// List returns every stored analysis, most recent first
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = resultPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(resultPrefix); it.ValidForPrefix(resultPrefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				return fmt.Errorf("corrupt history entry %x: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.AnalyzedAt.Compare(a.AnalyzedAt)
	})
	return entries, nil
}

// Delete removes the analysis of fileName
func (s *Store) Delete(fileName string) error {
	if _, err := s.Get(fileName); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(fileName))
	})
	if err != nil {
		return fmt.Errorf("failed to delete history entry for %s: %w", fileName, err)
	}
	return nil
}

// Clear removes every stored analysis
func (s *Store) Clear() error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = resultPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(resultPrefix); it.ValidForPrefix(resultPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan history: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	s.logger.Debug("History cleared", logging.Fields{"entries": len(keys)})
	return nil
}

// badgerLogger routes badger's internal logging through the package logger
type badgerLogger struct {
	logger logging.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.logger.Error(fmt.Errorf(format, args...), "badger")
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.logger.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}
