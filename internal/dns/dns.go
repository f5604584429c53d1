package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// publicServers are queried directly when the system resolver fails, which
// happens on captive or misconfigured networks.
var publicServers = []string{
	"1.1.1.1",
	"1.0.0.1",
	"2606:4700:4700::1111",
	"8.8.8.8",
	"8.8.4.4",
	"2001:4860:4860::8888",
	"9.9.9.9",
	"149.112.112.112",
	"208.67.222.222",
	"208.67.220.220",
}

// lookupFunc resolves host through server, or through the system resolver
// when server is empty.
type lookupFunc func(ctx context.Context, host, server string) ([]string, error)

// Resolver resolves the relay host, falling back to a race between public
// DNS servers.
type Resolver struct {
	Servers      []string
	LocalTimeout time.Duration
	RaceTimeout  time.Duration

	lookup lookupFunc
}

// NewResolver returns a resolver over the built-in public server list.
func NewResolver() *Resolver {
	return &Resolver{
		Servers:      publicServers,
		LocalTimeout: time.Second,
		RaceTimeout:  2 * time.Second,
		lookup:       netLookup,
	}
}

// Lookup resolves host with the default resolver.
func Lookup(ctx context.Context, host string) (string, error) {
	return NewResolver().Lookup(ctx, host)
}

// Lookup returns one address for host, preferring IPv4. IP literals are
// returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	localCtx, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	ips, err := r.lookup(localCtx, host, "")
	cancel()
	if err == nil && len(ips) > 0 {
		return pick(ips), nil
	}

	return r.race(ctx, host)
}

func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	if len(r.Servers) == 0 {
		return "", fmt.Errorf("resolve %s: no fallback servers", host)
	}

	ctx, cancel := context.WithTimeout(ctx, r.RaceTimeout)
	defer cancel()

	type result struct {
		ips []string
		err error
	}
	results := make(chan result, len(r.Servers))
	for _, server := range r.Servers {
		go func() {
			ips, err := r.lookup(ctx, host, server)
			results <- result{ips: ips, err: err}
		}()
	}

	var errs []error
	for range r.Servers {
		select {
		case res := <-results:
			if res.err == nil && len(res.ips) > 0 {
				return pick(res.ips), nil
			}
			if res.err != nil {
				errs = append(errs, res.err)
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all %d fallback servers failed: %w", host, len(r.Servers), errors.Join(errs...))
}

func pick(ips []string) string {
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
			return ip
		}
	}
	return ips[0]
}

func netLookup(ctx context.Context, host, server string) ([]string, error) {
	r := &net.Resolver{}
	if server != "" {
		r.PreferGo = true
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		}
	}
	return r.LookupHost(ctx, host)
}

// DialContext dials addr after resolving its host with Lookup. It fits
// websocket.Dialer.NetDialContext.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := Lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}
