package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/baxromumarov/job-extractor/internal/events"
	"github.com/baxromumarov/job-extractor/internal/extractor"
)

// ErrChannelUnavailable means the extractor service could not be reached.
// It is the one failure a caller must tell apart from an empty posting.
var ErrChannelUnavailable = errors.New("extractor service unavailable")

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extractor service: %s (status %d)", e.Message, e.Code)
}

// Unwrap maps a 502 to extractor.ErrPageUnavailable.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusBadGateway {
		return extractor.ErrPageUnavailable
	}
	return nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying client, e.g. to shorten timeouts.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type parseRequest struct {
	URL  string  `json:"url"`
	HTML *string `json:"html,omitempty"`
}

// Parse asks the service to extract a posting. With html nil the service
// fetches url itself; a non-nil empty html is parsed as an empty document.
func (c *Client) Parse(ctx context.Context, url string, html *string) (extractor.ParsedJobPosting, error) {
	reqBody := parseRequest{URL: url, HTML: html}

	var posting extractor.ParsedJobPosting
	if err := c.call(ctx, http.MethodPost, "/parse", reqBody, &posting); err != nil {
		return extractor.ParsedJobPosting{}, err
	}
	return posting, nil
}

type WatchSession struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	OpenedAt time.Time `json:"opened_at"`
}

// Watch opens a live watch session on the service.
func (c *Client) Watch(ctx context.Context, url string) (WatchSession, error) {
	var session WatchSession
	err := c.call(ctx, http.MethodPost, "/watch", map[string]string{"url": url}, &session)
	return session, err
}

func (c *Client) Unwatch(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/watch/"+id, nil, nil)
}

// Events streams pushed postings until ctx is done or the stream ends. The
// returned channel is closed when streaming stops.
func (c *Client) Events(ctx context.Context) (<-chan events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives any client timeout
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	out := make(chan events.Event)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		readEvents(ctx, resp.Body, out)
	}()
	return out, nil
}

func readEvents(ctx context.Context, body io.Reader, out chan<- events.Event) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "" && data.Len() > 0:
			var ev events.Event
			if err := json.Unmarshal([]byte(data.String()), &ev); err == nil {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			data.Reset()
		}
	}
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
