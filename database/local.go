package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sfallmann/conf-central/codec"
	"github.com/sfallmann/conf-central/model"
)

// LocalStore is a MemoryStore that commits a snapshot file after every write,
// for single-process development setups.
type LocalStore struct {
	*MemoryStore
	path string
}

type snapshot struct {
	Records []snapshotRecord `cbor:"records"`
	IDs     map[string]int64 `cbor:"ids"`
}

type snapshotRecord struct {
	Key  string `cbor:"key"`
	Data []byte `cbor:"data"`
}

// OpenLocal loads the snapshot at path, creating an empty one if the file does
// not exist yet.
func OpenLocal(path string) (*LocalStore, error) {
	s := &LocalStore{MemoryStore: NewMemoryStore(), path: path}

	fileBytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.commit(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("database: read local db: %w", err)
	} else if err := s.restore(fileBytes); err != nil {
		return nil, err
	}

	s.afterWrite = s.commit
	return s, nil
}

func (s *LocalStore) restore(fileBytes []byte) error {
	var snap snapshot
	if err := codec.Unmarshal(fileBytes, &snap); err != nil {
		return fmt.Errorf("database: decode local db %s: %w", s.path, err)
	}

	for _, sr := range snap.Records {
		key, err := model.DecodeKey(sr.Key)
		if err != nil {
			return fmt.Errorf("database: local db %s: %w", s.path, err)
		}
		e, err := newEntity(key.Kind)
		if err != nil {
			return err
		}
		r := record{key: key, data: sr.Data}
		if err := loadRecord(r, e); err != nil {
			return err
		}
		r.props = copyProperties(e.Properties())
		s.records[sr.Key] = r
	}
	for name, id := range snap.IDs {
		s.ids[name] = id
	}
	return nil
}

// commit writes the snapshot through a temporary file so a crash never leaves
// a truncated database behind. Callers hold mu.
func (s *LocalStore) commit() error {
	snap := snapshot{IDs: s.ids}
	for enc, r := range s.records {
		snap.Records = append(snap.Records, snapshotRecord{Key: enc, Data: r.data})
	}
	snapBytes, err := codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("database: encode local db: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("database: write local db: %w", err)
	}
	_, writeErr := tmp.Write(snapBytes)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("database: write local db: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("database: write local db: %w", err)
	}
	return nil
}

func (s *LocalStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit()
}
