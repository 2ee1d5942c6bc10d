package registry

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"twinhub/internal/platform/config"
	"twinhub/pkg/platform/sentinel"
)

// API is the registry boundary the orchestrator depends on. Lookup methods
// return sentinel.ErrNotFound for absent shells or submodels.
type API interface {
	CreateOrUpdateShell(ctx context.Context, descriptor ShellDescriptor) (ShellDescriptor, error)
	GetShellByID(ctx context.Context, shellID string) (ShellDescriptor, error)
	CreateSubmodelDescriptor(ctx context.Context, shellID string, descriptor SubmodelDescriptor) (SubmodelDescriptor, error)
	DeleteShell(ctx context.Context, shellID string) error
	DeleteSubmodel(ctx context.Context, shellID, submodelID string) error
}

// Client talks to a digital twin registry over its shell-descriptor API.
// Descriptor identifiers are base64url-encoded in paths, as the registry
// API requires.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.RegistryConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreateOrUpdateShell(ctx context.Context, descriptor ShellDescriptor) (ShellDescriptor, error) {
	// The registry upserts by descriptor ID: PUT on the existing resource,
	// POST when it does not exist yet.
	_, err := c.GetShellByID(ctx, descriptor.ID)
	switch {
	case err == nil:
		return c.putShell(ctx, descriptor)
	case errors.Is(err, sentinel.ErrNotFound):
		return c.postShell(ctx, descriptor)
	default:
		return ShellDescriptor{}, err
	}
}

func (c *Client) GetShellByID(ctx context.Context, shellID string) (ShellDescriptor, error) {
	var out ShellDescriptor
	err := c.do(ctx, http.MethodGet, "/shell-descriptors/"+encodeID(shellID), nil, &out)
	return out, err
}

func (c *Client) CreateSubmodelDescriptor(ctx context.Context, shellID string, descriptor SubmodelDescriptor) (SubmodelDescriptor, error) {
	var out SubmodelDescriptor
	err := c.do(ctx, http.MethodPost, "/shell-descriptors/"+encodeID(shellID)+"/submodel-descriptors", descriptor, &out)
	return out, err
}

func (c *Client) DeleteShell(ctx context.Context, shellID string) error {
	return c.do(ctx, http.MethodDelete, "/shell-descriptors/"+encodeID(shellID), nil, nil)
}

func (c *Client) DeleteSubmodel(ctx context.Context, shellID, submodelID string) error {
	return c.do(ctx, http.MethodDelete,
		"/shell-descriptors/"+encodeID(shellID)+"/submodel-descriptors/"+encodeID(submodelID), nil, nil)
}

func (c *Client) putShell(ctx context.Context, descriptor ShellDescriptor) (ShellDescriptor, error) {
	err := c.do(ctx, http.MethodPut, "/shell-descriptors/"+encodeID(descriptor.ID), descriptor, nil)
	return descriptor, err
}

func (c *Client) postShell(ctx context.Context, descriptor ShellDescriptor) (ShellDescriptor, error) {
	var out ShellDescriptor
	err := c.do(ctx, http.MethodPost, "/shell-descriptors", descriptor, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode registry request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("registry %s %s: %w", method, path, sentinel.ErrNotFound)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode registry response: %w", err)
		}
		return nil
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("registry %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
}

func encodeID(id string) string {
	return base64.URLEncoding.EncodeToString([]byte(id))
}
