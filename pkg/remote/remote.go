// Package remote reads the hosted product table through its REST endpoint.
package remote

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

	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/models"
	"github.com/shopspring/decimal"
)

const Source = "remote"

var ErrDisabled = errors.New("remote catalog is not configured")

// Lister is anything that can produce product listings; the local catalog
// and the hosted table both qualify.
type Lister interface {
	Listings(ctx context.Context) ([]models.Listing, error)
}

type Client struct {
	baseURL string
	apiKey  string
	table   string
	http    *http.Client
}

func NewClient(cfg config.RemoteConfig) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

func NewClientWithHTTP(cfg config.RemoteConfig, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		table:   cfg.Table,
		http:    hc,
	}
}

func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type row struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// rowID accepts both numeric and text primary keys.
func rowID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func (c *Client) Listings(ctx context.Context) ([]models.Listing, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?select=*", c.baseURL, url.PathEscape(c.table))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: status %d: %s", c.table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.table, err)
	}

	out := make([]models.Listing, 0, len(rows))
	for _, r := range rows {
		id, err := rowID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("decode %s id: %w", c.table, err)
		}
		out = append(out, models.Listing{ID: id, Name: r.Name, Price: r.Price, Source: Source})
	}
	return out, nil
}
