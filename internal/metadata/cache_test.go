package metadata

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubFetcher struct {
	page  Page
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) (Page, error) {
	s.calls++
	if s.err != nil {
		return Page{}, s.err
	}
	return s.page, nil
}

func TestCachingFetcherFetch(t *testing.T) {
	base := &stubFetcher{page: Page{Body: "<title>Test</title>", StatusCode: 200}}
	cache := NewCachingFetcher(base, time.Minute)

	ctx := context.Background()

	page, err := cache.Fetch(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.Body != "<title>Test</title>" {
		t.Fatalf("unexpected page: %+v", page)
	}

	if _, err := cache.Fetch(ctx, "https://example.com"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected cached result got %d calls", base.calls)
	}
}

func TestCachingFetcherDoesNotCacheErrors(t *testing.T) {
	base := &stubFetcher{err: ErrNoMarkup}
	cache := NewCachingFetcher(base, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.Fetch(context.Background(), "https://example.com"); !errors.Is(err, ErrNoMarkup) {
			t.Fatalf("expected ErrNoMarkup got %v", err)
		}
	}
	if base.calls != 2 {
		t.Fatalf("expected every failure to reach the base fetcher, got %d calls", base.calls)
	}
}

func TestCachingFetcherExpiry(t *testing.T) {
	base := &stubFetcher{page: Page{Body: "x"}}
	cache := NewCachingFetcher(base, time.Minute)

	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if _, err := cache.Fetch(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	now = now.Add(2 * time.Minute)

	if _, err := cache.Fetch(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected cache miss after expiry got %d calls", base.calls)
	}
}

func TestCachingFetcherNilBase(t *testing.T) {
	var cache *CachingFetcher
	if _, err := cache.Fetch(context.Background(), "https://example.com"); !errors.Is(err, ErrNoMarkup) {
		t.Fatalf("expected ErrNoMarkup got %v", err)
	}
	if NewCachingFetcher(nil, 0).ttl <= 0 {
		t.Fatal("expected ttl to default positive")
	}
}
