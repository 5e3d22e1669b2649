package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/carelane/patdex/internal/db"
	"github.com/carelane/patdex/internal/domain"
)

type fakeStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[key] = value
	return nil
}

type fakeEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	return f.result, f.err
}

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.25, -1.5, 3.0},
		TotalTokens: 12,
	}}
	store := &fakeStore{}
	cached := New(inner, store, nil, zap.NewNop())

	first, err := cached.Embed(context.Background(), "diabetic adult")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 12 {
		t.Errorf("miss should report provider tokens, got %d", first.TotalTokens)
	}

	second, err := cached.Embed(context.Background(), "diabetic adult")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("hit must not call the provider, calls=%d", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit consumes no tokens, got %d", second.TotalTokens)
	}
	if len(second.Embedding) != 3 || second.Embedding[1] != -1.5 {
		t.Errorf("cached vector corrupted: %v", second.Embedding)
	}
}

func TestEmbed_DistinctTextsDistinctKeys(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	store := &fakeStore{}
	cached := New(inner, store, nil, zap.NewNop())

	if _, err := cached.Embed(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cached.Embed(context.Background(), "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("different texts must not share a cache entry, calls=%d", inner.calls)
	}
}

func TestEmbed_ProviderErrorNotCached(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("connection refused")}
	store := &fakeStore{}
	cached := New(inner, store, nil, zap.NewNop())

	if _, err := cached.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected provider error to surface")
	}
	if len(store.data) != 0 {
		t.Error("a failed embedding must not be cached")
	}
}

func TestEmbed_StoreFailuresDegradeToProvider(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 3}}
	store := &fakeStore{getErr: errors.New("store offline"), setErr: errors.New("store offline")}
	cached := New(inner, store, nil, zap.NewNop())

	result, err := cached.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("cache failures must not fail the embedding: %v", err)
	}
	if result.TotalTokens != 3 || inner.calls != 1 {
		t.Errorf("expected provider fallback, got %+v calls=%d", result, inner.calls)
	}
}
