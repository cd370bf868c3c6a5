package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Document is one Solr document keyed by field name.
type Document map[string]interface{}

// Client talks to a single Solr core over the JSON update API.
type Client struct {
	coreURL    string
	httpClient *http.Client
}

func NewClient(coreURL string) *Client {
	return &Client{
		coreURL: coreURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// NewClientWithHTTPClient is used by tests to inject a transport.
func NewClientWithHTTPClient(coreURL string, httpClient *http.Client) *Client {
	return &Client{coreURL: coreURL, httpClient: httpClient}
}

func (c *Client) CoreURL() string {
	return c.coreURL
}

// Add indexes the given documents. Documents with an id already in the
// core replace the stored copy.
func (c *Client) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	return c.update(ctx, docs)
}

// DeleteByID removes documents by their unique key.
func (c *Client) DeleteByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.update(ctx, map[string]interface{}{
		"delete": ids,
	})
}

// DeleteByQuery removes every document matching the query.
func (c *Client) DeleteByQuery(ctx context.Context, query string) error {
	return c.update(ctx, map[string]interface{}{
		"delete": map[string]string{"query": query},
	})
}

// Commit makes all pending updates visible to searchers.
func (c *Client) Commit(ctx context.Context) error {
	return c.update(ctx, map[string]interface{}{
		"commit": map[string]interface{}{},
	})
}

// Optimize merges index segments. Expensive; run only after large
// batch loads.
func (c *Client) Optimize(ctx context.Context) error {
	return c.update(ctx, map[string]interface{}{
		"optimize": map[string]interface{}{},
	})
}

// Ping checks that the core is up and answering.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.coreURL+"/admin/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to create solr ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solr ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solr ping returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) update(ctx context.Context, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal solr update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.coreURL+"/update", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create solr update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solr update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("solr update returned status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
