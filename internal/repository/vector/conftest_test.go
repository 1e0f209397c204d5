package vector

import (
	"context"
	"sort"

	"github.com/kailas-cloud/knowledgeops/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	delFn         func(ctx context.Context, keys ...string) (int, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchFltFn   func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) (int, error) {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return len(keys), nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if m.searchFltFn != nil {
		return m.searchFltFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// hashStore keeps hashes in memory and answers filter searches with exact tag matches.
type hashStore struct {
	mockStore
	hashes map[string]map[string]string
}

func newHashStore() *hashStore {
	h := &hashStore{hashes: map[string]map[string]string{}}
	h.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		for _, it := range items {
			h.hashes[it.Key] = it.Fields
		}
		return nil
	}
	h.delFn = func(_ context.Context, keys ...string) (int, error) {
		n := 0
		for _, k := range keys {
			if _, ok := h.hashes[k]; ok {
				delete(h.hashes, k)
				n++
			}
		}
		return n, nil
	}
	h.searchFltFn = func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		keys := make([]string, 0, len(h.hashes))
		for k, f := range h.hashes {
			if q.Filters.Matches(f) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		res := &db.SearchResult{Total: len(keys)}
		for i := q.Offset; i < len(keys) && i < q.Offset+q.Limit; i++ {
			res.Entries = append(res.Entries, db.SearchEntry{Key: keys[i], Fields: h.hashes[keys[i]]})
		}
		return res, nil
	}
	return h
}
