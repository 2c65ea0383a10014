package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
)

const (
	// DefaultReadyTimeout is how long AwaitReady waits for the automation server.
	DefaultReadyTimeout = 30 * time.Second

	// DefaultPollInterval is the delay between two status probes.
	DefaultPollInterval = 200 * time.Millisecond

	// DefaultRequestTimeout bounds a single status request.
	DefaultRequestTimeout = 1 * time.Second

	// StatusPath is the automation server endpoint reporting readiness.
	StatusPath = "/status"

	maxStatusBody = 1 << 20
)

// Status is the decoded body of a /status response. Only the readiness flag
// matters; the message is kept for debug logs.
type Status struct {
	Value struct {
		Ready   bool   `json:"ready"`
		Message string `json:"message"`
	} `json:"value"`
}

// Prober polls an automation server until it reports ready.
type Prober struct {
	Client         *http.Client
	Interval       time.Duration
	RequestTimeout time.Duration
}

// NewProber creates a Prober with a pooled cleanhttp client and default timings.
func NewProber() *Prober {
	return &Prober{
		Client:         cleanhttp.DefaultPooledClient(),
		Interval:       DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// StatusURL returns the readiness endpoint for an automation server.
func StatusURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d%s", host, port, StatusPath)
}

// Check performs a single probe. A connection error, read timeout, non-2xx
// status or undecodable body all mean "not ready yet" and are returned as
// errors so the caller can log them.
func (p *Prober) Check(ctx context.Context, url string) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatusBody)).Decode(&status); err != nil {
		return false, fmt.Errorf("decode status: %w", err)
	}

	if !status.Value.Ready {
		return false, fmt.Errorf("server not ready: %s", status.Value.Message)
	}
	return true, nil
}

// AwaitReady polls url every Interval until the server reports ready or
// timeout elapses. Expiry returns an error of kind KindTimeout that also
// matches errors.ErrTimeout. Cancellation of ctx returns ctx.Err().
func (p *Prober) AwaitReady(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	attempts := 0

	operation := func() error {
		attempts++
		ready, err := p.Check(pollCtx, url)
		if ready {
			return nil
		}
		logging.Debug("automation server not ready", "url", url, "attempt", attempts, "error", err)
		return err
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.interval()), pollCtx)
	if err := backoff.Retry(operation, b); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Timeout(fmt.Sprintf("%s not ready after %s (%d attempts)", url, timeout, attempts))
	}

	logging.Debug("automation server ready", "url", url, "attempts", attempts, "elapsed", time.Since(start))
	return nil
}

// Settle waits for d so a viewer attached to the display sees a stable
// desktop. It returns early with ctx.Err() on cancellation.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Prober) client() *http.Client {
	if p.Client == nil {
		return cleanhttp.DefaultPooledClient()
	}
	return p.Client
}

func (p *Prober) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

func (p *Prober) requestTimeout() time.Duration {
	if p.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return p.RequestTimeout
}
