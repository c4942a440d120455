package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// BaseURLResolver finds the URL a tile server actually answers on.
// ok is false when base was returned unchanged because nothing answered.
type BaseURLResolver interface {
	Resolve(ctx context.Context, base string) (resolved string, ok bool)
}

type NoopResolver struct{}

func (NoopResolver) Resolve(_ context.Context, base string) (string, bool) {
	return base, false
}

// DefaultCandidatePorts are tried after the port named in the base URL.
var DefaultCandidatePorts = []int{62134, 62135, 8080, 80, 3000}

// PortScanResolver probes common ports on the base URL's host.
type PortScanResolver struct {
	Client *http.Client
	Ports  []int
	Logger *zap.Logger

	// LookupDNS explains a failed scan. Defaults to CheckDNS.
	LookupDNS func(ctx context.Context, host string) DNSStatus
}

func NewPortScanResolver(logger *zap.Logger) *PortScanResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortScanResolver{
		Client:    &http.Client{Timeout: 5 * time.Second},
		Ports:     DefaultCandidatePorts,
		Logger:    logger,
		LookupDNS: CheckDNS,
	}
}

func (r *PortScanResolver) Resolve(ctx context.Context, base string) (string, bool) {
	scheme, host, port := "http", "localhost", 0
	if u, err := url.Parse(base); err == nil {
		if u.Scheme != "" {
			scheme = u.Scheme
		}
		if h := u.Hostname(); h != "" {
			host = h
		}
		port, _ = strconv.Atoi(u.Port())
	}

	for _, p := range candidatePorts(port, r.Ports) {
		candidate := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(p)))
		if found, ok := r.try(ctx, candidate); ok {
			r.Logger.Info("server_detected",
				zap.String("base", base),
				zap.String("server_url", found),
			)
			return found, true
		}
		if ctx.Err() != nil {
			break
		}
	}

	lookup := r.LookupDNS
	if lookup == nil {
		lookup = CheckDNS
	}
	dns := lookup(ctx, host)
	r.Logger.Warn("server_not_detected",
		zap.String("base", base),
		zap.String("host", host),
		zap.String("dns_class", dns.Class),
		zap.String("resolver_error", dns.ResolverError),
	)
	return base, false
}

// try returns the scheme and host the candidate ends up on after redirects.
func (r *PortScanResolver) try(ctx context.Context, candidate string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return "", false
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		r.Logger.Debug("server_candidate_unreachable", zap.String("url", candidate), zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		r.Logger.Debug("server_candidate_error", zap.String("url", candidate), zap.Int("status", resp.StatusCode))
		return "", false
	}
	final := resp.Request.URL
	return final.Scheme + "://" + final.Host, true
}

func candidatePorts(first int, rest []int) []int {
	out := make([]int, 0, len(rest)+1)
	if first > 0 {
		out = append(out, first)
	}
	for _, p := range rest {
		if p != first {
			out = append(out, p)
		}
	}
	return out
}
