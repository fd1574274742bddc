// Package search pushes transformed submission metadata into the
// full-text search index, keyed by the durable package id so
// re-ingestion overwrites instead of duplicating.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDisabled is returned when the indexer configuration is missing.
var ErrDisabled = errors.New("search indexing disabled: missing endpoint, api key or collection name")

// Config is injected from main; the indexer never reads the
// environment itself.
type Config struct {
	Endpoint   string
	APIKey     string
	Collection string
}

func (c Config) enabled() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.Collection != ""
}

type Indexer struct {
	cfg    Config
	client *http.Client
}

func NewIndexer(cfg Config) *Indexer {
	return &Indexer{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Upsert indexes the document under the package id, replacing any
// existing entry for that id.
func (i *Indexer) Upsert(ctx context.Context, packageID string, doc map[string]interface{}) error {
	if !i.cfg.enabled() {
		return ErrDisabled
	}
	if packageID == "" {
		return fmt.Errorf("search: package id is empty")
	}

	payload := make(map[string]interface{}, len(doc)+1)
	for k, v := range doc {
		payload[k] = v
	}
	payload["id"] = packageID

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("search: marshal payload: %w", err)
	}

	base := strings.TrimRight(i.cfg.Endpoint, "/")
	target := fmt.Sprintf("%s/collections/%s/documents?action=upsert", base, url.PathEscape(i.cfg.Collection))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-TYPESENSE-API-KEY", i.cfg.APIKey)

	return i.do(req, "indexing")
}

// Delete removes the index entry for a package id. A missing entry is
// not an error: re-ingestion deletes before indexing and the first
// ingestion of a package has nothing to delete.
func (i *Indexer) Delete(ctx context.Context, packageID string) error {
	if !i.cfg.enabled() {
		return ErrDisabled
	}

	base := strings.TrimRight(i.cfg.Endpoint, "/")
	target := fmt.Sprintf("%s/collections/%s/documents/%s", base,
		url.PathEscape(i.cfg.Collection), url.PathEscape(packageID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("X-TYPESENSE-API-KEY", i.cfg.APIKey)

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("search: delete failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (i *Indexer) do(req *http.Request, op string) error {
	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("search: %s failed with status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
