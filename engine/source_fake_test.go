package engine

import (
	"context"
	"errors"
	"sync"
)

// fakeSource is an in-memory DataSource for engine tests.
type fakeSource struct {
	mu        sync.Mutex
	columns   []string
	rows      []Row
	fetchErr  error
	appendErr error
	fetches   int

	// onFetch, when set, runs under the lock before each fetch; lets
	// tests mutate content between poll cycles or allocation attempts.
	onFetch func(f *fakeSource)
}

func newFakeSource(rows ...Row) *fakeSource {
	return &fakeSource{columns: SheetColumns, rows: rows}
}

func (f *fakeSource) FetchRows(ctx context.Context) ([]string, []Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.onFetch != nil {
		f.onFetch(f)
	}
	if f.fetchErr != nil {
		return nil, nil, f.fetchErr
	}
	rows := make([]Row, len(f.rows))
	for i, r := range f.rows {
		rows[i] = r.Clone()
	}
	return f.columns, rows, nil
}

func (f *fakeSource) AppendRow(ctx context.Context, row Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, row.Clone())
	return nil
}

func (f *fakeSource) UpdateRow(ctx context.Context, code string, row Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.Code() == code {
			f.rows[i] = row.Clone()
			return nil
		}
	}
	return errors.New("code not found: " + code)
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}
