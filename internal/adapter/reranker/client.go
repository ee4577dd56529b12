// Package reranker calls hosted cross-encoder rerank endpoints.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ProviderJina   = "jina"
	ProviderCohere = "cohere"
)

type endpoint struct {
	url      string
	model    string
	sendTopN bool
}

var endpoints = map[string]endpoint{
	ProviderJina:   {url: "https://api.jina.ai/v1/rerank", model: "jina-reranker-v1-base-en"},
	ProviderCohere: {url: "https://api.cohere.ai/v1/rerank", model: "rerank-english-v3.0", sendTopN: true},
}

type Client struct {
	name   string
	ep     endpoint
	apiKey string
	client *http.Client
}

func NewClient(provider, apiKey string, timeout time.Duration) (*Client, error) {
	ep, ok := endpoints[provider]
	if !ok {
		return nil, fmt.Errorf("unknown rerank provider %q", provider)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		name:   provider,
		ep:     ep,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) WithBaseURL(url string) *Client {
	c.ep.url = url
	return c
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n,omitempty"`
	ReturnDocuments *bool    `json:"return_documents,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns indices into docs, most relevant first. Indices the
// provider repeats or that fall outside docs are dropped.
func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	body := rerankRequest{Model: c.ep.model, Query: query, Documents: docs}
	if c.ep.sendTopN {
		no := false
		body.TopN = len(docs)
		body.ReturnDocuments = &no
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ep.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s api error: %d: %s", c.name, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s decode: %w", c.name, err)
	}

	indices := make([]int, 0, len(result.Results))
	seen := make(map[int]bool, len(result.Results))
	for _, r := range result.Results {
		if r.Index < 0 || r.Index >= len(docs) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		indices = append(indices, r.Index)
	}
	return indices, nil
}
