// Package discovery enriches unmatched products through an external
// image/text search provider and persists the synthesized catalog entries.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mercadolista/catalog-service/config"
)

// ImageResult is one image hit returned by the provider.
type ImageResult struct {
	ImageURL string `json:"imageUrl"`
	Domain   string `json:"domain"`
	Title    string `json:"title"`
}

// TextResult is one organic text hit returned by the provider.
type TextResult struct {
	Snippet string `json:"snippet"`
}

// Provider is the external search API. Both methods may legitimately return
// empty result lists; Available reports whether a credential is configured.
type Provider interface {
	Available() bool
	SearchImages(ctx context.Context, query string) ([]ImageResult, error)
	SearchText(ctx context.Context, query string) ([]TextResult, error)
}

// SerperClient talks to the Serper search API.
type SerperClient struct {
	config     config.SerperConfig
	httpClient *http.Client
	logger     *slog.Logger
}

type serperRequest struct {
	Query string `json:"q"`
}

type serperImagesResponse struct {
	Images []ImageResult `json:"images"`
}

type serperSearchResponse struct {
	Organic []TextResult `json:"organic"`
}

func NewSerperClient(cfg config.SerperConfig, logger *slog.Logger) *SerperClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://google.serper.dev"
	}

	return &SerperClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (c *SerperClient) Available() bool {
	return c.config.APIKey != ""
}

func (c *SerperClient) SearchImages(ctx context.Context, query string) ([]ImageResult, error) {
	var response serperImagesResponse
	if err := c.post(ctx, "/images", query, &response); err != nil {
		return nil, err
	}
	return response.Images, nil
}

func (c *SerperClient) SearchText(ctx context.Context, query string) ([]TextResult, error) {
	var response serperSearchResponse
	if err := c.post(ctx, "/search", query, &response); err != nil {
		return nil, err
	}
	return response.Organic, nil
}

func (c *SerperClient) post(ctx context.Context, path, query string, out interface{}) error {
	payload, err := json.Marshal(serperRequest{Query: query})
	if err != nil {
		return fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode search response: %w", err)
	}

	return nil
}
