// Package discovery advertises relay servers on the local network over mDNS
// and lets clients find them.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType тип сервиса, под которым публикуется relay
const ServiceType = "_boardsync._tcp"

// DefaultTimeout время ожидания ответов при поиске
const DefaultTimeout = 2 * time.Second

// Relay is a relay server found on the local network.
type Relay struct {
	Instance string
	Host     string
	Addr     string // Addr адрес в формате host:port
	Version  string
	TLS      bool
}

// URL returns the base URL of the relay.
func (r Relay) URL() string {
	if r.TLS {
		return "https://" + r.Addr
	}
	return "http://" + r.Addr
}

// Info is the metadata published in the TXT record.
type Info struct {
	Version string
	TLS     bool
}

func (i Info) txt() []string {
	return []string{
		"service=boardsync",
		"version=" + i.Version,
		"tls=" + strconv.FormatBool(i.TLS),
	}
}

func parseTXT(fields []string) Info {
	var info Info
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch key {
		case "version":
			info.Version = value
		case "tls":
			info.TLS, _ = strconv.ParseBool(value)
		}
	}
	return info
}

// Advertiser publishes the relay until Shutdown is called.
type Advertiser struct {
	server *mdns.Server
	logger *slog.Logger
}

// Advertise publishes the relay listening on port. An empty instance uses the
// host name.
func Advertise(instance string, port int, info Info, logger *slog.Logger) (*Advertiser, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info.txt())
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	logger.Info("Advertising relay over mDNS", "instance", instance, "port", port)
	return &Advertiser{server: server, logger: logger}, nil
}

// Shutdown stops the advertisement.
func (a *Advertiser) Shutdown() error {
	if err := a.server.Shutdown(); err != nil {
		a.logger.Warn("Failed to stop mDNS server", "error", err)
		return fmt.Errorf("failed to stop mDNS server: %w", err)
	}
	return nil
}

// Browse queries the local network for relays and returns them ordered by
// instance name. The query lasts timeout or until ctx is done, whichever is
// shorter.
func Browse(ctx context.Context, timeout time.Duration, logger *slog.Logger) ([]Relay, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan []Relay)
	go func() {
		done <- collect(entries)
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	relays := <-done
	if err != nil {
		logger.Warn("Failed to query mDNS", "error", err)
		return nil, fmt.Errorf("failed to query mDNS: %w", err)
	}

	logger.Debug("mDNS browse finished", "relays", len(relays))
	return relays, nil
}

func collect(entries <-chan *mdns.ServiceEntry) []Relay {
	seen := make(map[string]bool)
	var relays []Relay
	for e := range entries {
		r, ok := relayFromEntry(e)
		if !ok || seen[r.Addr] {
			continue
		}
		seen[r.Addr] = true
		relays = append(relays, r)
	}
	sort.Slice(relays, func(i, j int) bool {
		if relays[i].Instance != relays[j].Instance {
			return relays[i].Instance < relays[j].Instance
		}
		return relays[i].Addr < relays[j].Addr
	})
	return relays
}

// relayFromEntry converts an mDNS answer; entries of other services or
// without an IPv4 address and port are skipped.
func relayFromEntry(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Relay{}, false
	}
	if !strings.Contains(e.Name, ServiceType) {
		return Relay{}, false
	}

	instance, _, _ := strings.Cut(e.Name, "."+ServiceType)
	info := parseTXT(e.InfoFields)
	return Relay{
		Instance: strings.ReplaceAll(instance, `\ `, " "),
		Host:     strings.TrimSuffix(e.Host, "."),
		Addr:     net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
		Version:  info.Version,
		TLS:      info.TLS,
	}, true
}
