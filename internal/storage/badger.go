package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "state:"

// Badger keeps one Badger directory per namespace under the data directory.
type Badger struct {
	db         *badger.DB
	backupPath string
}

// NewBadger opens or creates <dataDir>/<slug>.badger.
func NewBadger(dataDir, namespace string) (*Badger, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "alertbell")
	}
	if err := ensureDirs(dataDir); err != nil {
		return nil, err
	}
	name := Slug(namespace)

	opts := badger.DefaultOptions(filepath.Join(dataDir, name+".badger"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Badger{
		db:         db,
		backupPath: filepath.Join(BackupDir(dataDir), name+".badger.bak"),
	}, nil
}

// BackupPath returns where Backup writes its copy.
func (b *Badger) BackupPath() string {
	return b.backupPath
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) Lookup(name string) ([]byte, error) {
	var record []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + name))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("look up state for", name, err)
	}
	return record, nil
}

func (b *Badger) Update(name string, record []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+name), record)
	})
	if err != nil {
		return persistenceError("save state for", name, err)
	}
	return nil
}

// Backup streams a full Badger backup to the backup directory, replacing the
// previous backup only once the new one is complete.
func (b *Badger) Backup() error {
	empty, err := b.isEmpty()
	if err != nil {
		return persistenceError("scan states", "", err)
	}
	if empty {
		return nil
	}

	tmp := b.backupPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return persistenceError("create backup", tmp, err)
	}
	if _, err := b.db.Backup(f, 0); err != nil {
		f.Close()
		os.Remove(tmp)
		return persistenceError("back up to", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return persistenceError("sync backup", tmp, err)
	}
	if err := f.Close(); err != nil {
		return persistenceError("close backup", tmp, err)
	}
	if err := os.Rename(tmp, b.backupPath); err != nil {
		return persistenceError("move backup to", b.backupPath, err)
	}
	return nil
}

func (b *Badger) isEmpty() (bool, error) {
	empty := true
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Rewind()
		empty = !it.Valid()
		return nil
	})
	return empty, err
}
