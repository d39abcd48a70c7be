package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/metrics"
)

const (
	defaultAPIURL = "https://api.notion.com/v1"
	apiVersion    = "2022-06-28"
)

// ErrNotConfigured is returned when no API key or parent page is set.
var ErrNotConfigured = errors.New("notion not configured")

// Page identifies a created Notion page.
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api %d %s: %s", e.Status, e.Code, e.Message)
}

// PartialPublishError reports a page that was created but whose append batch
// Batch failed. Batch 0 is the creation call, so Batch is always >= 1. Blocks
// from earlier batches remain on the page.
type PartialPublishError struct {
	PageID string
	URL    string
	Batch  int
	Err    error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("page %s created but append batch %d failed: %v", e.PageID, e.Batch, e.Err)
}

func (e *PartialPublishError) Unwrap() error { return e.Err }

type Writer struct {
	apiKey       string
	parentPageID string
	client       *http.Client
	apiURL       string
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewWriter(apiKey, parentPageID string, m *metrics.Metrics, logger *slog.Logger) *Writer {
	return &Writer{
		apiKey:       apiKey,
		parentPageID: parentPageID,
		client:       &http.Client{Timeout: 30 * time.Second},
		apiURL:       defaultAPIURL,
		metrics:      m,
		logger:       logger,
	}
}

// Configured reports whether the writer has credentials and a parent page.
func (w *Writer) Configured() bool {
	return w != nil && w.apiKey != "" && w.parentPageID != ""
}

// Publish converts markdown to blocks and creates a page titled title under the
// parent page. The first MaxBlocksPerRequest blocks go with the create call and
// the rest are appended in order. A failed append returns *PartialPublishError;
// nothing is rolled back or retried.
func (w *Writer) Publish(ctx context.Context, title, markdown string) (Page, error) {
	if !w.Configured() {
		return Page{}, ErrNotConfigured
	}

	batches := Batches(ToBlocks(markdown), MaxBlocksPerRequest)
	var first []Block
	if len(batches) > 0 {
		first = batches[0]
	}

	page, err := w.CreatePage(ctx, title, first)
	if err != nil {
		return Page{}, err
	}

	for i := 1; i < len(batches); i++ {
		if err := w.AppendBlocks(ctx, page.ID, batches[i]); err != nil {
			w.logger.Error("notion append failed",
				"page_id", page.ID,
				"batch", i,
				"batches", len(batches),
				"error", err,
			)
			return page, &PartialPublishError{PageID: page.ID, URL: page.URL, Batch: i, Err: err}
		}
	}

	w.logger.Info("created notion page", "page_id", page.ID, "batches", len(batches))
	return page, nil
}

// CreatePage creates a child page of the parent page with up to
// MaxBlocksPerRequest initial children.
func (w *Writer) CreatePage(ctx context.Context, title string, children []Block) (Page, error) {
	if len(children) > MaxBlocksPerRequest {
		return Page{}, fmt.Errorf("create page: %d children exceeds %d", len(children), MaxBlocksPerRequest)
	}
	if children == nil {
		children = []Block{}
	}

	payload := map[string]any{
		"parent": map[string]any{"page_id": w.parentPageID},
		"properties": map[string]any{
			"title": map[string]any{"title": plainText(title)},
		},
		"children": children,
	}

	var page Page
	err := w.do(ctx, http.MethodPost, "/pages", payload, &page)
	w.recordBatch(err)
	if err != nil {
		return Page{}, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

// AppendBlocks appends children to an existing block or page.
func (w *Writer) AppendBlocks(ctx context.Context, blockID string, children []Block) error {
	if len(children) > MaxBlocksPerRequest {
		return fmt.Errorf("append blocks: %d children exceeds %d", len(children), MaxBlocksPerRequest)
	}

	err := w.do(ctx, http.MethodPatch, "/blocks/"+blockID+"/children", map[string]any{"children": children}, nil)
	w.recordBatch(err)
	if err != nil {
		return fmt.Errorf("append blocks: %w", err)
	}
	return nil
}

// Validate checks that the parent page is reachable with the configured key.
func (w *Writer) Validate(ctx context.Context) error {
	if !w.Configured() {
		return ErrNotConfigured
	}
	if err := w.do(ctx, http.MethodGet, "/pages/"+w.parentPageID, nil, nil); err != nil {
		return fmt.Errorf("retrieve parent page: %w", err)
	}
	return nil
}

func (w *Writer) recordBatch(err error) {
	if err != nil {
		w.metrics.NotionBatch("error")
		return
	}
	w.metrics.NotionBatch("ok")
}

func (w *Writer) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Notion-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
