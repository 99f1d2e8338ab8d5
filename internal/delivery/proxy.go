package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

var (
	// ErrInvalidTarget is returned for a proxy target that does not parse.
	ErrInvalidTarget = errors.New("invalid proxy target")
	// ErrSchemeNotAllowed is returned for proxy targets other than http/https.
	ErrSchemeNotAllowed = errors.New("only http/https protocols are allowed")
)

// ProxyError is an upstream response outside 2xx.
type ProxyError struct {
	Status int
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("Upstream error: %d", e.Status)
}

// ProxyHandler relays GET requests to remote http/https URLs.
type ProxyHandler struct {
	client      *http.Client
	allowOrigin string
	log         *zap.Logger
}

// NewProxyHandler creates a proxy using client for upstream requests.
func NewProxyHandler(client *http.Client, allowOrigin string, log *zap.Logger) *ProxyHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &ProxyHandler{client: client, allowOrigin: allowOrigin, log: log}
}

// ValidateTarget checks a proxy target before any network call.
func ValidateTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrSchemeNotAllowed, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidTarget)
	}
	return u, nil
}

// ServeHTTP handles GET ?url=U, forwarding Range.
func (p *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "Missing 'url' query parameter", http.StatusBadRequest)
		return
	}
	target, err := ValidateTarget(raw)
	if err != nil {
		msg := "Invalid URL"
		if errors.Is(err, ErrSchemeNotAllowed) {
			msg = "Only http/https protocols are allowed"
		}
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	resp, err := p.fetch(r.Context(), target, r.Header.Get("Range"))
	if err != nil {
		var pe *ProxyError
		if errors.As(err, &pe) {
			http.Error(w, pe.Error(), pe.Status)
			return
		}
		p.log.Warn("upstream request failed", zap.String("url", target.Redacted()), zap.Error(err))
		http.Error(w, fmt.Sprintf("Upstream request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = DefaultContentType
	}
	header.Set("Content-Type", ct)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		header.Set("Content-Length", cl)
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		header.Set("Content-Range", cr)
	}
	header.Set("Access-Control-Allow-Origin", p.allowOrigin)

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.log.Debug("proxy copy interrupted", zap.String("url", target.Redacted()), zap.Error(err))
	}
}

// fetch performs the upstream GET. Responses outside 2xx are closed and
// returned as *ProxyError.
func (p *ProxyHandler) fetch(ctx context.Context, target *url.URL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &ProxyError{Status: resp.StatusCode}
	}
	return resp, nil
}
