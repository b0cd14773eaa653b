// Package httpstore is the REST client of the relay server's board storage.
package httpstore

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

	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

// Client представляет HTTP клиент хранилища досок relay-сервера
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var _ store.Store = (*Client)(nil)

// NewClient создает новый клиент хранилища. token передается в заголовке
// Authorization и может быть пустым.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

func boardPath(boardID string, parts ...string) string {
	p := "/api/v1/boards/" + url.PathEscape(boardID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) GetSnapshot(ctx context.Context, boardID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.doRequest(ctx, http.MethodGet, boardPath(boardID, "snapshot"), nil, &snap); err != nil {
		return nil, fmt.Errorf("get snapshot request failed: %w", err)
	}
	return &snap, nil
}

func (c *Client) PutSnapshot(ctx context.Context, boardID string, snap *models.Snapshot) error {
	if err := c.doRequest(ctx, http.MethodPut, boardPath(boardID, "snapshot"), snap, nil); err != nil {
		return fmt.Errorf("put snapshot request failed: %w", err)
	}
	return nil
}

func (c *Client) ListObjects(ctx context.Context, boardID string, kind models.ObjectKind) ([]json.RawMessage, error) {
	var resp api.ObjectsResponse
	if err := c.doRequest(ctx, http.MethodGet, boardPath(boardID, "objects", string(kind)), nil, &resp); err != nil {
		return nil, fmt.Errorf("list objects request failed: %w", err)
	}
	if resp.Objects == nil {
		resp.Objects = []json.RawMessage{}
	}
	return resp.Objects, nil
}

func (c *Client) InsertObject(ctx context.Context, boardID string, kind models.ObjectKind, fields json.RawMessage) (json.RawMessage, error) {
	var stored json.RawMessage
	if err := c.doRequest(ctx, http.MethodPost, boardPath(boardID, "objects", string(kind)), fields, &stored); err != nil {
		return nil, fmt.Errorf("insert object request failed: %w", err)
	}
	return stored, nil
}

func (c *Client) PatchObject(ctx context.Context, boardID string, kind models.ObjectKind, id string, fields json.RawMessage) error {
	if err := c.doRequest(ctx, http.MethodPatch, boardPath(boardID, "objects", string(kind), id), fields, nil); err != nil {
		return fmt.Errorf("patch object request failed: %w", err)
	}
	return nil
}

func (c *Client) DeleteObject(ctx context.Context, boardID string, kind models.ObjectKind, id string) error {
	err := c.doRequest(ctx, http.MethodDelete, boardPath(boardID, "objects", string(kind), id), nil, nil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete object request failed: %w", err)
	}
	return nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос. Ошибки классифицируются в
// store.ErrPermissionDenied, store.ErrNotFound и store.ErrTransient.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", store.ErrTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", store.ErrTransient, err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := store.ErrTransient
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = store.ErrPermissionDenied
		case http.StatusNotFound:
			kind = store.ErrNotFound
		}

		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%w: server error (%d): %s", kind, resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("%w: request failed with status %d", kind, resp.StatusCode)
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
