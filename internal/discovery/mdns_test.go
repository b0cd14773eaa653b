package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfo_TXTRoundTrip(t *testing.T) {
	info := Info{Version: "1.2.0", TLS: true}
	assert.Equal(t, info, parseTXT(info.txt()))

	assert.Equal(t, Info{Version: "x"}, parseTXT([]string{"garbage", "version=x", "tls=maybe"}))
}

func TestRelayFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  Relay
		ok    bool
	}{
		{
			name: "relay",
			entry: &mdns.ServiceEntry{
				Name:       "studio.local._boardsync._tcp.local.",
				Host:       "studio.local.",
				AddrV4:     net.IPv4(192, 168, 1, 20),
				Port:       8080,
				InfoFields: []string{"service=boardsync", "version=1.0.0", "tls=false"},
			},
			want: Relay{Instance: "studio.local", Host: "studio.local", Addr: "192.168.1.20:8080", Version: "1.0.0"},
			ok:   true,
		},
		{
			name: "escaped instance",
			entry: &mdns.ServiceEntry{
				Name:       `Team\ Board._boardsync._tcp.local.`,
				AddrV4:     net.IPv4(10, 0, 0, 1),
				Port:       443,
				InfoFields: []string{"tls=true"},
			},
			want: Relay{Instance: "Team Board", Addr: "10.0.0.1:443", TLS: true},
			ok:   true,
		},
		{
			name:  "no address",
			entry: &mdns.ServiceEntry{Name: "a._boardsync._tcp.local.", Port: 80},
		},
		{
			name:  "no port",
			entry: &mdns.ServiceEntry{Name: "a._boardsync._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1)},
		},
		{
			name:  "other service",
			entry: &mdns.ServiceEntry{Name: "printer._ipp._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 631},
		},
		{name: "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := relayFromEntry(tt.entry)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollect_DeduplicatesAndSorts(t *testing.T) {
	entries := make(chan *mdns.ServiceEntry, 4)
	entries <- &mdns.ServiceEntry{Name: "b._boardsync._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 2), Port: 8080}
	entries <- &mdns.ServiceEntry{Name: "a._boardsync._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 8080}
	entries <- &mdns.ServiceEntry{Name: "b._boardsync._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 2), Port: 8080}
	entries <- &mdns.ServiceEntry{Name: "c._boardsync._tcp.local."}
	close(entries)

	relays := collect(entries)
	require.Len(t, relays, 2)
	assert.Equal(t, "a", relays[0].Instance)
	assert.Equal(t, "b", relays[1].Instance)
}

func TestRelay_URL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.1:8080", Relay{Addr: "10.0.0.1:8080"}.URL())
	assert.Equal(t, "https://10.0.0.1:443", Relay{Addr: "10.0.0.1:443", TLS: true}.URL())
}
