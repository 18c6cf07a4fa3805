// internal/report/report.go
//
// Best-effort score telemetry.
//   - Consent: parses the ?consent= flag that gates every network call.
//   - HTTPLocator: fetches the geolocation of a client address as opaque JSON.
//   - HTTPReporter: POSTs a game.Report as JSON; one attempt, no retries.
//
// Failures are returned to the caller (the game session), which only logs them.

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robalobadob/tradle/internal/game"
)

// ConsentParam is the query parameter carrying the consent flag.
const ConsentParam = "consent"

// Consent reads the consent flag from query values.
// Absent or empty: granted (standalone play). Otherwise granted only for
// "true", case-insensitively.
func Consent(q url.Values) bool {
	v := strings.TrimSpace(q.Get(ConsentParam))
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "true")
}

// maxLookupBody bounds the geolocation response we keep.
const maxLookupBody = 16 << 10

// HTTPLocator queries a geolocation-by-IP endpoint of the form {URL}/{ip}.
type HTTPLocator struct {
	URL    string
	Client *http.Client
}

// NewHTTPLocator returns a locator for url.
func NewHTTPLocator(url string, timeout time.Duration) *HTTPLocator {
	return &HTTPLocator{URL: url, Client: &http.Client{Timeout: timeout}}
}

// ErrNoAddress is returned when Lookup is called without a client address.
var ErrNoAddress = errors.New("ip lookup: no client address")

// Lookup returns the raw JSON body describing ip.
func (l *HTTPLocator) Lookup(ctx context.Context, ip string) (json.RawMessage, error) {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return nil, ErrNoAddress
	}
	target := strings.TrimSuffix(l.URL, "/") + "/" + url.PathEscape(addr.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	res, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip lookup: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip lookup: status %d", res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxLookupBody))
	if err != nil {
		return nil, fmt.Errorf("ip lookup: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("ip lookup: response is not JSON")
	}
	return json.RawMessage(body), nil
}

// HTTPReporter posts reports to a collector URL.
type HTTPReporter struct {
	URL    string
	Client *http.Client
}

// NewHTTPReporter returns a reporter for url.
func NewHTTPReporter(url string, timeout time.Duration) *HTTPReporter {
	return &HTTPReporter{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Report sends r once. Any transport error or non-2xx status is wrapped in
// game.ErrReportDelivery.
func (p *HTTPReporter) Report(ctx context.Context, r game.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", game.ErrReportDelivery, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", game.ErrReportDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", game.ErrReportDelivery, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", game.ErrReportDelivery, res.StatusCode)
	}
	return nil
}
