package redis

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/knowledgeops/internal/db"
	"github.com/kailas-cloud/knowledgeops/internal/domain/search/filter"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

// --- hash.go tests ---

func TestHSetMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f1": "v1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
		{Key: "k2", Fields: map[string]string{"f": "v"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !isDBError(err) || !strings.Contains(err.Error(), "k2") {
		t.Errorf("expected db.Error naming k2, got %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil)
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDel_MultipleKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "k1", "k2")).
		Return(mock.Result(mock.RedisInt64(2)))

	s := NewStoreForTest(c)
	n, err := s.Del(context.Background(), "k1", "k2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
}

func TestDel_NoKeys(t *testing.T) {
	s := NewStoreForTest(nil)
	n, err := s.Del(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("got %d, %v", n, err)
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("myvalue"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go tests ---

func testIndex() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     "kops:idx",
		Prefixes: []string{"kops:vec:"},
		Fields: []db.IndexField{
			{Name: "tenant_id", Type: db.IndexFieldTag},
			{Name: "vector", Type: db.IndexFieldVector, VectorAlgo: db.VectorHNSW, VectorDim: 4},
		},
	}
}

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "kops:idx" && cmd[2] == "ON" && cmd[3] == "HASH"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.CreateIndex(context.Background(), testIndex()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	err := s.CreateIndex(context.Background(), testIndex())
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.CreateIndex(context.Background(), testIndex())
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "kops:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "kops:idx"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name   string
		result rueidis.RedisResult
		want   bool
	}{
		{"exists", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("kops:idx"))), true},
		{"redis unknown", mock.Result(mock.RedisError("Unknown index name")), false},
		{"valkey not found", mock.Result(mock.RedisError("Index with name 'kops:idx' not found")), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().
				Do(gomock.Any(), mock.Match("FT.INFO", "kops:idx")).
				Return(tc.result)

			got, err := NewStoreForTest(c).IndexExists(context.Background(), "kops:idx")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("IndexExists = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildCreateArgs(t *testing.T) {
	args, err := buildCreateArgs(testIndex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"kops:idx", "ON", "HASH", "PREFIX", "1", "kops:vec:", "SCHEMA",
		"tenant_id", "TAG",
		"vector", "VECTOR", "HNSW", "6", "TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE",
	}
	if !slices.Equal(args, want) {
		t.Errorf("args = %v\nwant   %v", args, want)
	}
}

func TestBuildCreateArgs_Validation(t *testing.T) {
	if _, err := buildCreateArgs(&db.IndexDefinition{}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := buildCreateArgs(&db.IndexDefinition{Name: "x"}); err == nil {
		t.Error("expected error for no fields")
	}
	bad := &db.IndexDefinition{Name: "x", Fields: []db.IndexField{{Name: "v", Type: db.IndexFieldVector}}}
	if _, err := buildCreateArgs(bad); err == nil {
		t.Error("expected error for zero DIM")
	}
}

func TestBuildVectorFieldArgs_HNSWParams(t *testing.T) {
	args, err := buildVectorFieldArgs(&db.IndexField{
		Name: "vector", Type: db.IndexFieldVector, VectorAlgo: db.VectorHNSW,
		VectorDim: 8, VectorM: 16, VectorEFConstruct: 200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[2] != "10" {
		t.Errorf("attr count = %s, want 10", args[2])
	}
	if !slices.Contains(args, "EF_CONSTRUCTION") {
		t.Errorf("missing EF_CONSTRUCTION: %v", args)
	}
}

// --- search.go tests ---

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var query string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.SEARCH" {
				return false
			}
			query = cmd[2]
			return true
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2), // total
			mock.RedisString("kops:vec:doc:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.4"), // distance 0.4 → similarity 0.6
				mock.RedisString("content"),
				mock.RedisString("second"),
			),
			mock.RedisString("kops:vec:doc:0"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.1"),
				mock.RedisString("content"),
				mock.RedisString("first"),
			),
		)))

	scope, err := filter.Scope("acme-corp", "it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "kops:idx",
		Filters:      scope,
		Vector:       []float32{0.1, 0.2},
		K:            5,
		ReturnFields: []string{"content"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != `(@tenant_id:{acme\-corp} @department_id:{it})=>[KNN 5 @vector $BLOB]` {
		t.Errorf("query = %q", query)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	first := result.Entries[0]
	if first.Key != "kops:vec:doc:0" || first.Fields["content"] != "first" {
		t.Errorf("entries not sorted by similarity: %+v", result.Entries)
	}
	if first.Score < 0.89 || first.Score > 0.91 {
		t.Errorf("expected score ~0.9, got %f", first.Score)
	}
	if _, ok := first.Fields["__vector_score"]; ok {
		t.Error("score field should be stripped")
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*=>[KNN 10 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
}

func TestSearchKNN_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1},
		K:         10,
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestSearchFilter_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("kops:vec:r1"),
			mock.RedisArray(
				mock.RedisString("tenant_id"), mock.RedisString("acme:hr"),
				mock.RedisString("document_id"), mock.RedisString("handbook"),
			),
		)))

	tenant, _ := filter.NewMatch("tenant_id", "acme:hr")
	doc, _ := filter.NewMatch("document_id", "handbook")
	expr, _ := filter.NewExpression([]filter.Condition{tenant, doc}, nil)

	res, err := NewStoreForTest(c).SearchFilter(context.Background(), &db.FilterQuery{
		IndexName:    "kops:idx",
		Filters:      expr,
		ReturnFields: []string{"tenant_id", "document_id"},
		Offset:       100,
		Limit:        100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"FT.SEARCH", "kops:idx", `@tenant_id:{acme\:hr} @document_id:{handbook}`,
		"RETURN", "2", "tenant_id", "document_id",
		"LIMIT", "100", "100", "DIALECT", "2",
	}
	if !slices.Equal(got, want) {
		t.Errorf("cmd = %q\nwant  %q", got, want)
	}
	if res.Total != 1 || len(res.Entries) != 1 || res.Entries[0].Key != "kops:vec:r1" {
		t.Fatalf("result = %+v", res)
	}
	if res.Entries[0].Fields["tenant_id"] != "acme:hr" {
		t.Errorf("fields = %v", res.Entries[0].Fields)
	}
}

func TestSearchFilter_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()
	tenant, _ := filter.NewMatch("tenant_id", "acme")
	expr, _ := filter.NewExpression([]filter.Condition{tenant}, nil)

	if _, err := s.SearchFilter(ctx, &db.FilterQuery{Filters: expr, Limit: 1}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchFilter(ctx, &db.FilterQuery{IndexName: "idx", Limit: 1}); err == nil {
		t.Error("expected error for empty filter")
	}
	if _, err := s.SearchFilter(ctx, &db.FilterQuery{IndexName: "idx", Filters: expr}); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 0}); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestBuildFilter(t *testing.T) {
	tenant, _ := filter.NewMatch("tenant_id", "t1")
	verified, _ := filter.NewMatch("source_type", "verified_answer")
	expr, err := filter.NewExpression([]filter.Condition{tenant}, []filter.Condition{verified})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := buildFilter(expr)
	if got != "@tenant_id:{t1} -@source_type:{verified_answer}" {
		t.Errorf("buildFilter = %q", got)
	}
	if buildFilter(filter.Expression{}) != "" {
		t.Error("empty expression should produce empty filter")
	}
}

func TestBuildTagFilter_Escaping(t *testing.T) {
	got := buildTagFilter("document_id", "a.b c:d")
	if got != `@document_id:{a\.b\ c\:d}` {
		t.Errorf("got %q", got)
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
