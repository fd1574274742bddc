package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestIndexer(url string) *Indexer {
	return NewIndexer(Config{Endpoint: url, APIKey: "test-key", Collection: "biohub"})
}

func TestUpsertSetsDocumentID(t *testing.T) {
	var gotPath, gotAction, gotKey string
	var gotDoc map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAction = r.URL.Query().Get("action")
		gotKey = r.Header.Get("X-TYPESENSE-API-KEY")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotDoc)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	indexer := newTestIndexer(srv.URL)
	err := indexer.Upsert(context.Background(), "pkg-1", map[string]interface{}{"title": "Moose Survey"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if gotPath != "/collections/biohub/documents" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAction != "upsert" {
		t.Fatalf("expected upsert action, got %q", gotAction)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header not set")
	}
	if gotDoc["id"] != "pkg-1" || gotDoc["title"] != "Moose Survey" {
		t.Fatalf("unexpected document %v", gotDoc)
	}
}

func TestUpsertOverwritesByPackageID(t *testing.T) {
	docs := map[string]map[string]interface{}{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var doc map[string]interface{}
		_ = json.Unmarshal(body, &doc)
		docs[doc["id"].(string)] = doc
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	indexer := newTestIndexer(srv.URL)
	ctx := context.Background()

	if err := indexer.Upsert(ctx, "pkg-1", map[string]interface{}{"title": "first"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := indexer.Upsert(ctx, "pkg-1", map[string]interface{}{"title": "second"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if len(docs) != 1 {
		t.Fatalf("expected one document per package id, got %d", len(docs))
	}
	if docs["pkg-1"]["title"] != "second" {
		t.Fatalf("re-ingestion must replace the indexed document, got %v", docs["pkg-1"])
	}
}

func TestDeleteToleratesMissingDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	indexer := newTestIndexer(srv.URL)
	if err := indexer.Delete(context.Background(), "never-indexed"); err != nil {
		t.Fatalf("delete of a missing document must succeed, got %v", err)
	}
}

func TestUpsertReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"collection not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	indexer := newTestIndexer(srv.URL)
	err := indexer.Upsert(context.Background(), "pkg-1", nil)
	if err == nil {
		t.Fatal("expected an error for a 404 upsert")
	}
}

func TestDisabledConfig(t *testing.T) {
	indexer := NewIndexer(Config{})

	if err := indexer.Upsert(context.Background(), "pkg-1", nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if err := indexer.Delete(context.Background(), "pkg-1"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestUpsertRequiresPackageID(t *testing.T) {
	indexer := newTestIndexer("http://localhost:1")
	if err := indexer.Upsert(context.Background(), "", nil); err == nil {
		t.Fatal("expected an error for an empty package id")
	}
}
