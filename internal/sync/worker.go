package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
)

const defaultTimeout = 10 * time.Second

// WorkerClient syncs against an edge worker gateway speaking JSON:
//
//	PUT  /notes/{slug}   upsert a note
//	GET  /notes/{slug}   fetch a note
//	GET  /notes          list slugs
//	PUT  /canvas/{id}    upsert a canvas snapshot
//	GET  /canvas/{id}    fetch a canvas snapshot
//
// Every request carries an Authorization bearer token.
type WorkerClient struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Backend = (*WorkerClient)(nil)

// WorkerOption customises a WorkerClient.
type WorkerOption func(*WorkerClient)

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) WorkerOption {
	return func(w *WorkerClient) { w.client = c }
}

// NewWorkerClient builds a client for the gateway at baseURL. Empty
// baseURL or token fall back to VAULT_SYNC_URL / VAULT_SYNC_TOKEN.
func NewWorkerClient(baseURL, token string, opts ...WorkerOption) *WorkerClient {
	if baseURL == "" {
		baseURL = os.Getenv(EnvSyncURL)
	}
	if token == "" {
		token = os.Getenv(EnvSyncToken)
	}
	w := &WorkerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WorkerClient) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("sync: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusErr(method, path string, code int) error {
	return fmt.Errorf("sync: %s %s: unexpected status %d", method, path, code)
}

// PushNote upserts a note on the gateway. The slug travels in the
// path, so the body carries only title, body, tags, and links.
func (w *WorkerClient) PushNote(ctx context.Context, note *models.Note) error {
	payload, err := json.Marshal(map[string]any{
		"title": note.Title,
		"body":  note.Body,
		"tags":  models.StringsOrEmpty(note.Tags),
		"links": models.StringsOrEmpty(note.Links),
	})
	if err != nil {
		return fmt.Errorf("sync: encode note %s: %w", note.Slug, err)
	}
	path := "/notes/" + note.Slug
	resp, err := w.do(ctx, http.MethodPut, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusErr(http.MethodPut, path, resp.StatusCode)
	}
	return nil
}

// PullNote fetches one note; nil, nil when the gateway has no record.
func (w *WorkerClient) PullNote(ctx context.Context, slug string) (*NoteRecord, error) {
	path := "/notes/" + slug
	resp, err := w.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusErr(http.MethodGet, path, resp.StatusCode)
	}
	var rec NoteRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("sync: decode note %s: %w", slug, err)
	}
	if rec.Slug == "" {
		rec.Slug = slug
	}
	return &rec, nil
}

// ListNotes returns every slug the gateway knows about.
func (w *WorkerClient) ListNotes(ctx context.Context) ([]string, error) {
	resp, err := w.do(ctx, http.MethodGet, "/notes", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusErr(http.MethodGet, "/notes", resp.StatusCode)
	}
	var listing struct {
		Slugs []string `json:"slugs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("sync: decode note list: %w", err)
	}
	if listing.Slugs == nil {
		listing.Slugs = []string{}
	}
	return listing.Slugs, nil
}

// PullAllNotes lists then fetches every note, skipping records that
// vanish between the two calls.
func (w *WorkerClient) PullAllNotes(ctx context.Context) ([]*NoteRecord, error) {
	slugs, err := w.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*NoteRecord, 0, len(slugs))
	for _, slug := range slugs {
		rec, err := w.PullNote(ctx, slug)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// PushCanvas upserts a canvas snapshot.
func (w *WorkerClient) PushCanvas(ctx context.Context, canvasID string, state json.RawMessage) error {
	path := "/canvas/" + canvasID
	resp, err := w.do(ctx, http.MethodPut, path, state)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusErr(http.MethodPut, path, resp.StatusCode)
	}
	return nil
}

// PullCanvas fetches a canvas snapshot; nil, nil when absent.
func (w *WorkerClient) PullCanvas(ctx context.Context, canvasID string) (json.RawMessage, error) {
	path := "/canvas/" + canvasID
	resp, err := w.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusErr(http.MethodGet, path, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sync: read canvas %s: %w", canvasID, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("sync: canvas %s: response is not valid JSON", canvasID)
	}
	return data, nil
}
