package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fieldtrace/presence-api/internal/agent/locator"
)

// Client is the agent-side HTTP client for the presence API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Subject mirrors the API's subject shape.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sample mirrors the API's sample shape.
type Sample struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subjectId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy"`
	Address    *string   `json:"address"`
	RecordedAt time.Time `json:"recordedAt"`
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Login resolves (name, email) to a subject, registering on first contact.
func (c *Client) Login(ctx context.Context, name, email string) (Subject, error) {
	var out struct {
		Subject Subject `json:"subject"`
	}
	err := c.post(ctx, "/identity/login", map[string]any{
		"name":  name,
		"email": email,
	}, &out)
	if err != nil {
		return Subject{}, err
	}
	return out.Subject, nil
}

// SendSample reports one position fix for a subject.
func (c *Client) SendSample(ctx context.Context, subjectID string, fix locator.Fix) (Sample, error) {
	var out struct {
		Sample Sample `json:"sample"`
	}
	err := c.post(ctx, "/location", map[string]any{
		"subjectId": subjectID,
		"latitude":  fix.Latitude,
		"longitude": fix.Longitude,
		"accuracy":  fix.Accuracy,
	}, &out)
	if err != nil {
		return Sample{}, err
	}
	return out.Sample, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
