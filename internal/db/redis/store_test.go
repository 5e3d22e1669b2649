package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/carelane/patdex/internal/db"
	"github.com/carelane/patdex/internal/domain/search/filter"
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

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{"Index Already Exists", "index already exists", true},
		{"UNKNOWN INDEX NAME", "unknown index name", true},
		{"hello world", "world", true},
		{"short", "longer than input", false},
		{"exact", "exact", true},
		{"", "", true},
		{"notempty", "", true},
	}
	for _, tc := range tests {
		got := containsIgnoreCase(tc.s, tc.sub)
		if got != tc.want {
			t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tc.s, tc.sub, got, tc.want)
		}
	}
}

// --- hash.go tests ---

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "patdex:patient:p1")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"full_name": mock.RedisString("Ada Byron"),
			"gender":    mock.RedisString("female"),
		})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "patdex:patient:p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["full_name"] != "Ada Byron" || m["gender"] != "female" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestHGetAll_AbsentKeyReturnsEmptyMap(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "patdex:patient:missing")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "patdex:patient:missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

// --- kv.go tests ---

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "patdex:emb_cache:abc")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "patdex:emb_cache:abc")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == "patdex:emb_cache:abc"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.Set(context.Background(), "patdex:emb_cache:abc", []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- search.go tests ---

func TestSearchKNN_QueryStringAndScores(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	pred, err := filter.Compile(filter.Filter{Gender: strPtr("female")}, fixedTime)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" &&
				cmd[1] == "patdex:patient:idx" &&
				cmd[2] == "(@gender:{female})=>[KNN 5 @vector $BLOB]" &&
				hasSubsequence(cmd, "LIMIT", "0", "5")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("patdex:patient:p1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.25"),
				mock.RedisString("full_name"), mock.RedisString("Ada Byron"),
			),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "patdex:patient:idx",
		Predicate: pred,
		Vector:    []float32{0.1, 0.2},
		K:         5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	entry := res.Entries[0]
	if entry.Key != "patdex:patient:p1" {
		t.Errorf("unexpected key %q", entry.Key)
	}
	if entry.Score != 0.75 {
		t.Errorf("expected score 0.75 (1 - distance), got %v", entry.Score)
	}
	if entry.Fields["full_name"] != "Ada Byron" {
		t.Errorf("unexpected fields: %v", entry.Fields)
	}
	if _, ok := entry.Fields["__vector_score"]; ok {
		t.Error("raw score field should be stripped")
	}
}

func TestSearchKNN_NoPredicateUsesWildcard(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*=>[KNN 3 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "patdex:patient:idx",
		Vector:    []float32{0.1},
		K:         3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 0 || len(res.Entries) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestSearchKNN_LimitCoversFullK(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// K above the server's default page size must carry an explicit LIMIT,
	// otherwise only the first 10 hits come back.
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" &&
				cmd[2] == "*=>[KNN 50 @vector $BLOB]" &&
				hasSubsequence(cmd, "LIMIT", "0", "50")
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "patdex:patient:idx",
		Vector:    []float32{0.1},
		K:         50,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchKNN_ScoreClampedAtZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("patdex:patient:p1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("1.8"),
			),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "patdex:patient:idx",
		Vector:    []float32{0.1},
		K:         1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Entries[0].Score != 0 {
		t.Errorf("expected score clamped to 0, got %v", res.Entries[0].Score)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := NewStoreForTest(nil)

	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{Vector: []float32{1}, K: 1}); err == nil {
		t.Error("expected error for missing index name")
	}
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", K: 1}); err == nil {
		t.Error("expected error for missing vector")
	}
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}}); err == nil {
		t.Error("expected error for non-positive k")
	}
}

func TestSearchSorted_ArgsAndParsing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	pred := filter.NewPredicate(mustMatch(t, "patient_id", "p1"), mustMatch(t, "category", "observation"))

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.SEARCH" || cmd[1] != "patdex:record:idx" {
				return false
			}
			if cmd[2] != "@patient_id:{p1} @category:{observation}" {
				return false
			}
			return hasSubsequence(cmd, "SORTBY", "recorded_at", "DESC") &&
				hasSubsequence(cmd, "LIMIT", "0", "20")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("patdex:record:r1"),
			mock.RedisArray(
				mock.RedisString("code"), mock.RedisString("8302-2"),
				mock.RedisString("recorded_at"), mock.RedisString("1700000000"),
			),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchSorted(context.Background(), &db.SortedQuery{
		IndexName:  "patdex:record:idx",
		Predicate:  pred,
		SortBy:     "recorded_at",
		Descending: true,
		Limit:      20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || res.Entries[0].Fields["code"] != "8302-2" {
		t.Errorf("unexpected result: %+v", res)
	}
}

// --- predicate building ---

func TestBuildPredicate_TagAndRange(t *testing.T) {
	deceased := true
	minAge, maxAge := 70, 90
	pred, err := filter.Compile(filter.Filter{
		Deceased: &deceased,
		MinAge:   &minAge,
		MaxAge:   &maxAge,
	}, fixedTime)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := buildPredicate(pred)
	want := "@deceased:{1} @age_at_death:[70 90]"
	if got != want {
		t.Errorf("buildPredicate = %q, want %q", got, want)
	}
}

func TestBuildPredicate_Empty(t *testing.T) {
	if got := buildPredicate(filter.Predicate{}); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestBuildPredicate_BirthDateInterval(t *testing.T) {
	minAge, maxAge := 30, 40
	pred, err := filter.Compile(filter.Filter{MinAge: &minAge, MaxAge: &maxAge}, fixedTime)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	lower := float64(fixedTime.AddDate(-41, 0, 0).Unix())
	upper := float64(fixedTime.AddDate(-30, 0, 0).Unix())
	want := fmt.Sprintf("@birth_date:[(%g %g]", lower, upper)
	if got := buildPredicate(pred); got != want {
		t.Errorf("buildPredicate = %q, want %q", got, want)
	}
}

func TestBuildTagClause_Escaping(t *testing.T) {
	got := buildTagClause("gender", "non-binary")
	want := `@gender:{non\-binary}`
	if got != want {
		t.Errorf("buildTagClause = %q, want %q", got, want)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1.0})
	if len(b) != 4 {
		t.Errorf("expected 4 bytes per float32, got %d", len(b))
	}
}

// --- helpers ---

var fixedTime = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func mustMatch(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatalf("new match: %v", err)
	}
	return c
}

func hasSubsequence(cmd []string, seq ...string) bool {
	for i := 0; i+len(seq) <= len(cmd); i++ {
		found := true
		for j := range seq {
			if cmd[i+j] != seq[j] {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}
