package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/vitwit/htlcbridge/logger"
	"github.com/vitwit/htlcbridge/types"
)

var transferPrefix = []byte("transfer/")

// BadgerStore is a TransferStore backed by BadgerDB.
type BadgerStore struct {
	db     *badgerdb.DB
	logger logger.Logger
	now    func() time.Time
}

var _ TransferStore = (*BadgerStore)(nil)

// NewBadgerStore opens the database at path. An empty path opens an
// in-memory database.
func NewBadgerStore(path string, l logger.Logger) (*BadgerStore, error) {
	if l == nil {
		l = logger.NoopLogger{}
	}

	opts := badgerdb.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logger: l}).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20).
		WithNumMemtables(2)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, &types.BridgeError{
			Code:    types.ErrStoreError,
			Message: fmt.Sprintf("failed to open badger store at %q: %v", path, err),
		}
	}

	l.Info("transfer store opened", map[string]any{"path": path, "in_memory": path == ""})
	return &BadgerStore{db: db, logger: l, now: time.Now}, nil
}

func recordKey(id string) []byte {
	return append(append([]byte{}, transferPrefix...), id...)
}

func (s *BadgerStore) Create(_ context.Context, rec TransferRecord) error {
	rec = newRecord(rec, s.now())

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		key := recordKey(rec.TransferID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.TransferID)
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return putRecord(txn, rec)
	})
	if err != nil {
		return fmt.Errorf("badger create: %w", err)
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (*TransferRecord, error) {
	var rec *TransferRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return rec, nil
}

func (s *BadgerStore) Transition(_ context.Context, id string, to State, mutate func(*TransferRecord)) (*TransferRecord, error) {
	var rec *TransferRecord
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		if err != nil {
			return err
		}
		if err := applyTransition(rec, to, mutate, s.now()); err != nil {
			return err
		}
		return putRecord(txn, *rec)
	})
	if err != nil {
		return nil, fmt.Errorf("badger transition: %w", err)
	}
	return rec, nil
}

func (s *BadgerStore) Update(_ context.Context, id string, mutate func(*TransferRecord)) (*TransferRecord, error) {
	var rec *TransferRecord
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		if err != nil {
			return err
		}
		mutate(rec)
		rec.UpdatedAt = s.now()
		return putRecord(txn, *rec)
	})
	if err != nil {
		return nil, fmt.Errorf("badger update: %w", err)
	}
	return rec, nil
}

// List returns every record ordered by creation time.
func (s *BadgerStore) List(_ context.Context) ([]TransferRecord, error) {
	var out []TransferRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = transferPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(transferPrefix); it.ValidForPrefix(transferPrefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec TransferRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list: %w", err)
	}

	sortRecords(out)
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func getRecord(txn *badgerdb.Txn, id string) (*TransferRecord, error) {
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}

	var rec TransferRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &rec, nil
}

func putRecord(txn *badgerdb.Txn, rec TransferRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(recordKey(rec.TransferID), val)
}

// badgerLogger routes badger's printf-style logging into logger.Logger.
type badgerLogger struct {
	logger logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf("[badger] "+format, args...), nil)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf("[badger] "+format, args...), nil)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf("[badger] "+format, args...), nil)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf("[badger] "+format, args...), nil)
}
