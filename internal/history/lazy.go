package history

import (
	"context"
	"sync"
)

// LazyStore opens the SQLite database on first use, so commands that end
// up doing nothing leave no database behind.
type LazyStore struct {
	path  string
	once  sync.Once
	store *SQLiteStore
	err   error
}

// NewLazyStore returns a store backed by the database at path, opened on demand.
func NewLazyStore(path string) *LazyStore {
	return &LazyStore{path: path}
}

func (l *LazyStore) open() (*SQLiteStore, error) {
	l.once.Do(func() {
		l.store, l.err = NewSQLiteStore(l.path)
	})
	return l.store, l.err
}

func (l *LazyStore) Record(ctx context.Context, run Run) error {
	s, err := l.open()
	if err != nil {
		return err
	}
	return s.Record(ctx, run)
}

func (l *LazyStore) AppendStage(ctx context.Context, runID string, stage Stage) error {
	s, err := l.open()
	if err != nil {
		return err
	}
	return s.AppendStage(ctx, runID, stage)
}

func (l *LazyStore) Get(ctx context.Context, id string) (Run, error) {
	s, err := l.open()
	if err != nil {
		return Run{}, err
	}
	return s.Get(ctx, id)
}

func (l *LazyStore) Stages(ctx context.Context, runID string) ([]Stage, error) {
	s, err := l.open()
	if err != nil {
		return nil, err
	}
	return s.Stages(ctx, runID)
}

func (l *LazyStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s, err := l.open()
	if err != nil {
		return nil, err
	}
	return s.Recent(ctx, limit)
}

// Close closes the database if it was opened.
func (l *LazyStore) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
