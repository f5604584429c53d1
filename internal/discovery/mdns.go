// Package discovery announces relays on the local network and finds them
// over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/BioHazard786/warpcall/internal/version"
	"github.com/brutella/dnssd"
)

const (
	ServiceType = "_warpcall._tcp"
	Domain      = "local"
)

// ErrNoRelay is returned when browsing ends without finding a relay.
var ErrNoRelay = errors.New("no relay found on the local network")

// lookupType is swapped out in tests.
var lookupType = dnssd.LookupType

// Announce advertises a relay listening on port until ctx is done.
func Announce(ctx context.Context, name string, port int) error {
	cfg := dnssd.Config{
		Name:   name,
		Type:   ServiceType,
		Domain: Domain,
		Port:   port,
		Text: map[string]string{
			"path":    "/ws",
			"version": version.Version,
		},
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("create mDNS responder: %w", err)
	}

	if _, err := rp.Add(service); err != nil {
		return fmt.Errorf("add mDNS service: %w", err)
	}

	slog.Info("announcing relay", "name", name, "port", port)
	if err := rp.Respond(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("respond to mDNS queries: %w", err)
	}
	return nil
}

// Browse returns the websocket URL of the first relay that answers before
// ctx is done.
func Browse(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan string, 1)
	add := func(e dnssd.BrowseEntry) {
		u, ok := relayURL(e)
		if !ok {
			return
		}
		select {
		case found <- u:
			cancel()
		default:
		}
	}
	rmv := func(dnssd.BrowseEntry) {}

	service := fmt.Sprintf("%s.%s.", ServiceType, Domain)
	err := lookupType(ctx, service, add, rmv)

	select {
	case u := <-found:
		slog.Debug("discovered relay", "url", u)
		return u, nil
	default:
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("mDNS lookup: %w", err)
	}
	return "", ErrNoRelay
}

// relayURL builds the relay address from a browse entry. IPv4 addresses are
// preferred over IPv6, and the host name is used when no address is known.
func relayURL(e dnssd.BrowseEntry) (string, bool) {
	if e.Port <= 0 {
		return "", false
	}

	var host string
	for _, ip := range e.IPs {
		if ip.To4() != nil {
			host = ip.String()
			break
		}
		if host == "" {
			host = ip.String()
		}
	}
	if host == "" {
		host = strings.TrimSuffix(e.Host, ".")
	}
	if host == "" {
		return "", false
	}

	path := e.Text["path"]
	if path == "" {
		path = "/ws"
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(e.Port)) + path, true
}
