package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"twinhub/internal/platform/config"
	"twinhub/pkg/platform/sentinel"
)

// ArtifactKind addresses one of the three connector object collections.
type ArtifactKind string

const (
	ArtifactAsset    ArtifactKind = "asset"
	ArtifactPolicy   ArtifactKind = "policy"
	ArtifactContract ArtifactKind = "contract"
)

var artifactPaths = map[ArtifactKind]string{
	ArtifactAsset:    "/v3/assets",
	ArtifactPolicy:   "/v3/policydefinitions",
	ArtifactContract: "/v3/contractdefinitions",
}

// Object is a connector management API object; identifiers live under "@id".
type Object map[string]any

// ID returns the object's "@id", or empty when absent.
func (o Object) ID() string {
	id, _ := o["@id"].(string)
	return id
}

// ManagementAPI is the boundary the provisioner talks to. GetByID returns
// sentinel.ErrNotFound for absent objects; Create fails on any non-success
// response.
//
//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks ManagementAPI
type ManagementAPI interface {
	GetByID(ctx context.Context, kind ArtifactKind, id string) (Object, error)
	Create(ctx context.Context, kind ArtifactKind, payload Object) (Object, error)
}

// Client is the HTTP implementation of ManagementAPI against an EDC
// management endpoint.
type Client struct {
	baseURL      string
	apiKeyHeader string
	apiKey       string
	http         *http.Client
}

func NewClient(cfg config.ConnectorConfig) *Client {
	return &Client{
		baseURL:      cfg.ManagementURL,
		apiKeyHeader: cfg.APIKeyHeader,
		apiKey:       cfg.APIKey,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) GetByID(ctx context.Context, kind ArtifactKind, id string) (Object, error) {
	path, ok := artifactPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	endpoint := c.baseURL + path + "/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connector get %s %s: %w", kind, id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, sentinel.ErrNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var obj Object
		if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
			return nil, fmt.Errorf("decode connector %s %s: %w", kind, id, err)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("connector get %s %s: %s", kind, id, readError(resp))
	}
}

func (c *Client) Create(ctx context.Context, kind ArtifactKind, payload Object) (Object, error) {
	path, ok := artifactPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode connector %s: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connector create %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("connector create %s: %s", kind, readError(resp))
	}
	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode connector create %s response: %w", kind, err)
	}
	return obj, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if len(body) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, body)
}
