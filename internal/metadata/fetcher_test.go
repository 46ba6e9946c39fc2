package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("expected user agent header")
		}
		_, _ = w.Write([]byte("<title>Hello</title>"))
	}))
	defer srv.Close()

	page, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.StatusCode != http.StatusOK || page.Body != "<title>Hello</title>" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestHTTPFetcherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoMarkup) {
		t.Fatalf("expected ErrNoMarkup got %v", err)
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	if _, err := NewHTTPFetcher(50*time.Millisecond).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("fetch did not respect timeout: %v", elapsed)
	}
}
