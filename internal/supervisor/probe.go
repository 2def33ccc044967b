package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appErr "arena/pkg/errors"
)

// Prober checks whether a service answers its health endpoint.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber probes GET <url> and expects 200 with status "healthy".
type HTTPProber struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPProber creates a prober. A zero timeout defaults to 2s.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPProber{url: url, timeout: timeout, client: &http.Client{}}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return appErr.Wrapf(err, appErr.ProbeFailed, "build probe request failed")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return appErr.Wrapf(err, appErr.ProbeFailed, "probe %s failed: %v", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return appErr.Newf(appErr.ProbeFailed, "probe %s returned %d", p.url, resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return appErr.Wrapf(err, appErr.ProbeFailed, "read probe body failed")
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return appErr.Wrapf(err, appErr.ProbeFailed, "decode probe body failed")
	}
	if body.Status != "healthy" {
		return appErr.New(appErr.ProbeFailed).WithMessage(fmt.Sprintf("service reports status %q", body.Status))
	}
	return nil
}
