// Package capture fetches a single page's visible text and title under a
// hard wall-clock budget. Failures normalize to model.ErrCaptureFailed;
// timeouts to model.ErrCaptureTimeout so callers can special-case them.
package capture

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/audit-cli/internal/model"
)

const (
	defaultBudget = 20 * time.Second
	maxBodyBytes  = 512 * 1024
	minBodyBytes  = 100
	userAgent     = "Mozilla/5.0 (compatible; PracticeAuditBot/1.0)"
)

// Capturer fetches pages over plain HTTP with a politeness limiter in front
// of the capture backend. It returns either a complete (text, title) pair
// or an error, never a partial result.
type Capturer struct {
	client  *http.Client
	limiter *rate.Limiter
	budget  time.Duration
}

// New creates a Capturer. A non-positive budget falls back to the default.
func New(budget time.Duration, requestsPerSecond float64) *Capturer {
	if budget <= 0 {
		budget = defaultBudget
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &Capturer{
		client: &http.Client{
			Timeout: budget,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		budget:  budget,
	}
}

// Capture fetches address and extracts its visible text and title.
func (c *Capturer) Capture(ctx context.Context, address string) (*model.CaptureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(err, address)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, NormalizeURL(address), nil)
	if err != nil {
		return nil, eris.Wrapf(model.ErrCaptureFailed, "capture: bad address %s", address)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(err, address)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Wrapf(model.ErrCaptureFailed, "capture: %s returned status %d", address, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(err, address)
	}
	if len(body) < minBodyBytes {
		return nil, eris.Wrapf(model.ErrCaptureFailed, "capture: %s returned an empty page", address)
	}

	text := stripHTML(string(body))
	return &model.CaptureResult{
		Text:          text,
		Title:         extractTitle(body),
		ContentLength: len(text),
	}, nil
}

// classify maps a transport error onto the capture error taxonomy.
func classify(err error, address string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return eris.Wrapf(model.ErrCaptureTimeout, "capture: fetch %s", address)
	}
	return eris.Wrapf(model.ErrCaptureFailed, "capture: fetch %s: %v", address, err)
}

// NormalizeURL prepends https:// when the address has no scheme.
func NormalizeURL(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return address
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		return "https://" + address
	}
	return address
}

var titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)

// extractTitle pulls the <title> from HTML.
func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes entities,
// and collapses whitespace. The result is plaintext for the detector set.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "noscript"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\n{3,}`)
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
