package agent

import (
	"bufio"
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
)

// HTTPClient talks to the agent runtime over its REST surface. Query events
// arrive as newline-delimited JSON.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type createSessionReq struct {
	UserID string `json:"user_id"`
}

type createSessionResp struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

func (c *HTTPClient) CreateSession(ctx context.Context, userID string) (string, error) {
	if c.Client == nil {
		return "", errors.New("agent: http client is nil")
	}

	b, err := json.Marshal(createSessionReq{UserID: userID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/sessions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent: create session status %d", resp.StatusCode)
	}

	var decoded createSessionResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	if decoded.ID == "" {
		return "", errors.New("agent: runtime returned empty session id")
	}
	return decoded.ID, nil
}

type streamQueryReq struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// StreamQuery streams raw events. It returns immediately with two channels;
// both will be closed when streaming ends.
func (c *HTTPClient) StreamQuery(ctx context.Context, userID, sessionID, message string) (<-chan json.RawMessage, <-chan error) {
	events := make(chan json.RawMessage, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		if c.Client == nil {
			errs <- errors.New("agent: http client is nil")
			return
		}

		b, err := json.Marshal(streamQueryReq{UserID: userID, SessionID: sessionID, Message: message})
		if err != nil {
			errs <- err
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/query", bytes.NewReader(b))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/x-ndjson")

		resp, err := c.Client.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = fmt.Sprintf("status %d", resp.StatusCode)
			}
			errs <- fmt.Errorf("agent: %s", msg)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		// event lines can be large; a whole task envelope fits in one line
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 4*1024*1024)

		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			events <- json.RawMessage(append([]byte(nil), line...))
		}

		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()

	return events, errs
}

func (c *HTTPClient) GetSession(ctx context.Context, userID, sessionID string) (*SessionInfo, error) {
	if c.Client == nil {
		return nil, errors.New("agent: http client is nil")
	}

	u := fmt.Sprintf("%s/v1/sessions/%s?user_id=%s", c.BaseURL, url.PathEscape(sessionID), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent: get session status %d", resp.StatusCode)
	}

	var info SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if c.Client == nil {
		return errors.New("agent: http client is nil")
	}

	u := fmt.Sprintf("%s/v1/sessions/%s?user_id=%s", c.BaseURL, url.PathEscape(sessionID), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent: delete session status %d", resp.StatusCode)
	}
	return nil
}
