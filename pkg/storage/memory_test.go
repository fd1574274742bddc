package storage

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	meta := Metadata{"filename": "moose.zip"}
	if err := store.PutObject(ctx, "biohub/submissions/1/moose.zip", []byte("bytes"), meta); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	data, gotMeta, err := store.GetObject(ctx, "biohub/submissions/1/moose.zip")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != "bytes" {
		t.Fatalf("unexpected data %q", data)
	}
	if gotMeta["filename"] != "moose.zip" {
		t.Fatalf("unexpected metadata %v", gotMeta)
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore()
	if _, _, err := store.GetObject(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for a missing key")
	}
}

func TestMemoryStoreCopiesOnPut(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("original")
	if err := store.PutObject(ctx, "key", data, nil); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	data[0] = 'X'

	stored, _, err := store.GetObject(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(stored) != "original" {
		t.Fatalf("stored bytes must not alias the caller's slice, got %q", stored)
	}
}

func TestStorageKeys(t *testing.T) {
	if got := SubmissionInputKey("biohub", 7, "dir/moose.zip"); got != "biohub/submissions/7/moose.zip" {
		t.Fatalf("unexpected submission key %q", got)
	}
	if got := ArtifactKey("biohub", 7, "a-1", "report.pdf"); got != "biohub/artifacts/7/a-1/report.pdf" {
		t.Fatalf("unexpected artifact key %q", got)
	}
	if got := StylesheetKey("stylesheets", "eml", "1.0.0"); got != "stylesheets/eml/1.0.0.json" {
		t.Fatalf("unexpected stylesheet key %q", got)
	}
}
