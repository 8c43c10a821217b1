package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"clipfeed/internal/domain"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrBadRequest   = errors.New("api rejected request")
	ErrUnauthorized = errors.New("api unauthorized")
	ErrNotFound     = errors.New("api resource not found")
	ErrUnavailable  = errors.New("api unavailable")
)

// Client habla con la API REST remota. Las llamadas autenticadas llevan
// el access token como Bearer.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient construye el cliente; baseURL sin el sufijo /api.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "clipfeed-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Solo las caídas del servidor abren el circuito; un 4xx es una
		// respuesta válida.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("api circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// Login maneja POST /api/login/.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Identity, error) {
	if err := requireFields(map[string]string{"username": username, "password": password}); err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	err := c.do(ctx, http.MethodPost, "/api/login/", "", map[string]string{
		"username": strings.TrimSpace(username),
		"password": password,
	}, &id)
	return id, err
}

// Register maneja POST /api/register/.
func (c *Client) Register(ctx context.Context, username, email, password string) (domain.Identity, error) {
	if err := requireFields(map[string]string{"username": username, "email": email, "password": password}); err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	err := c.do(ctx, http.MethodPost, "/api/register/", "", map[string]string{
		"username": strings.TrimSpace(username),
		"email":    strings.TrimSpace(email),
		"password": password,
	}, &id)
	return id, err
}

// Refresh maneja POST /api/token/refresh/. El servidor puede no rotar el
// refresh token; en ese caso el campo vuelve vacío.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: refresh", ErrMissingField)
	}
	var pair domain.TokenPair
	err := c.do(ctx, http.MethodPost, "/api/token/refresh/", "", map[string]string{
		"refresh": refreshToken,
	}, &pair)
	return pair, err
}

// Notifications maneja GET /api/notifications/.
func (c *Client) Notifications(ctx context.Context, access string) ([]domain.Notification, error) {
	var items []domain.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications/", access, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkAllNotificationsSeen maneja POST /api/notifications/mark-all-seen/.
func (c *Client) MarkAllNotificationsSeen(ctx context.Context, access string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/mark-all-seen/", access, struct{}{}, nil)
}

// User maneja GET /api/user/{id}/.
func (c *Client) User(ctx context.Context, access string, id int64) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, http.MethodGet, "/api/user/"+strconv.FormatInt(id, 10)+"/", access, nil, &u)
	return u, err
}

func (c *Client) do(ctx context.Context, method, path, access string, body, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, access, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path, access string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: do request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("api error response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID),
		)
		return statusError(resp.StatusCode)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status=%d", ErrUnauthorized, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status=%d", ErrNotFound, code)
	case code >= 500:
		return fmt.Errorf("%w: status=%d", ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: status=%d", ErrBadRequest, code)
	}
}

// requireFields replica la validación de los formularios antes de salir a
// la red.
func requireFields(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &FieldError{Fields: missing}
}

// FieldError lista los campos obligatorios que faltan.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return ErrMissingField.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *FieldError) Unwrap() error { return ErrMissingField }
