package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	nurl "net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/yangwenmai/reviewer/internal/model"
)

const (
	// minTextLength is the minimum content length to accept from a fetched page.
	// Pages returning less than this are likely login walls, cookie walls, or empty pages.
	minTextLength = 100
	// maxBodySize is the maximum HTTP response body size (5MB).
	maxBodySize = 5 * 1024 * 1024
)

// errBlockedAddress is returned when a fetch would reach a loopback, private
// or link-local address.
var errBlockedAddress = errors.New("address not allowed")

// HTMLConverter extracts readable text from HTML files and web pages using go-readability.
type HTMLConverter struct {
	client       *http.Client
	attempts     int
	backoff      time.Duration
	allowPrivate bool
}

// HTMLOption configures an HTMLConverter.
type HTMLOption func(*HTMLConverter)

// WithHTTPClient replaces the client used by FetchURL.
func WithHTTPClient(c *http.Client) HTMLOption {
	return func(h *HTMLConverter) { h.client = c }
}

// WithPrivateNetworks lets the default client reach loopback and private
// addresses. Ignored when WithHTTPClient is used.
func WithPrivateNetworks() HTMLOption {
	return func(h *HTMLConverter) { h.allowPrivate = true }
}

// WithRetry sets the fetch attempts and the base backoff between them.
func WithRetry(attempts int, backoff time.Duration) HTMLOption {
	return func(h *HTMLConverter) {
		if attempts > 0 {
			h.attempts = attempts
		}
		h.backoff = backoff
	}
}

// NewHTMLConverter creates an HTML converter.
func NewHTMLConverter(timeout time.Duration, opts ...HTMLOption) *HTMLConverter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &HTMLConverter{
		attempts: 3,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = newPublicClient(timeout, h.allowPrivate)
	}
	return h
}

// newPublicClient returns a client whose dialer refuses non-public addresses,
// redirects included.
func newPublicClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip := net.ParseIP(host)
			if ip == nil || !isPublicIP(ip) {
				return fmt.Errorf("%w: %s", errBlockedAddress, host)
			}
			return nil
		}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	if !allowPrivate {
		// A proxy would resolve and dial the target itself.
		transport.Proxy = nil
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// Convert extracts the article text of a local HTML file.
func (h *HTMLConverter) Convert(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", model.ErrConversion, filepath.Base(path), err)
	}
	defer f.Close()

	abs, _ := filepath.Abs(path)
	article, err := readability.FromReader(io.LimitReader(f, maxBodySize), &nurl.URL{Scheme: "file", Path: abs})
	if err != nil {
		return "", fmt.Errorf("%w: readability: %w", model.ErrConversion, err)
	}
	return normalizeText(article.TextContent), nil
}

// statusError is a non-200 response. 4xx responses are not retried.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d for %s", e.code, e.url) }

// FetchURL downloads a page and extracts its main text, retrying transient failures.
// Only http and https URLs are accepted.
func (h *HTMLConverter) FetchURL(ctx context.Context, url string) (string, error) {
	u, err := nurl.Parse(url)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: unsupported url %q", model.ErrConversion, url)
	}

	var lastErr error
	for attempt := 0; attempt < h.attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * h.backoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := h.fetch(ctx, url)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			break
		}
		if errors.Is(err, errBlockedAddress) {
			break
		}
	}
	return "", fmt.Errorf("%w: %w", model.ErrConversion, lastErr)
}

func (h *HTMLConverter) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	// Use a realistic browser User-Agent to avoid being blocked by sites.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, url: url}
	}

	parsedURL, _ := nurl.Parse(url)
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodySize), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	text := normalizeText(article.TextContent)
	if n := utf8.RuneCountInString(text); n < minTextLength {
		return "", fmt.Errorf("extracted content too short (%d chars), possibly blocked or empty page", n)
	}
	return text, nil
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
