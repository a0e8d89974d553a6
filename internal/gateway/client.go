package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client performs provider API calls with a bounded timeout per call.
type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
}

// DoJSON sends in as a JSON body (nil sends none) and decodes a 2xx answer into out.
func (c *Client) DoJSON(ctx context.Context, method, url string, header http.Header, in, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, url)
		}
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: reading %s", ErrTimeout, url)
		}
		return fmt.Errorf("io.ReadAll: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("json.Unmarshal provider response: %w", err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
