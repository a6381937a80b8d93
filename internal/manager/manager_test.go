package manager

import (
	"testing"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/zone"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("dns.NewRR(%q): %v", s, err)
	}
	return rr
}

func TestZoneFilePathUsesLowercaseName(t *testing.T) {
	m := New("/var/lib/zonecore/zones", nil, nil)
	t.Cleanup(m.Dispose)
	if got, want := m.zoneFilePath(zone.NewName("Example.COM.")), "/var/lib/zonecore/zones/example.com.zone"; got != want {
		t.Fatalf("zoneFilePath: got %q, want %q", got, want)
	}
}

func TestZoneFilePathRootZone(t *testing.T) {
	m := New("/var/lib/zonecore/zones", nil, nil)
	t.Cleanup(m.Dispose)
	if got, want := m.zoneFilePath(zone.NewName(".")), "/var/lib/zonecore/zones/.zone"; got != want {
		t.Fatalf("zoneFilePath: got %q, want %q", got, want)
	}
}

func TestIsInternalZone(t *testing.T) {
	for _, name := range []string{"localhost.", "127.in-addr.arpa.", "LOCALHOST"} {
		if !IsInternalZone(name) {
			t.Fatalf("expected %q to be internal", name)
		}
	}
	if IsInternalZone("example.com.") {
		t.Fatalf("example.com. should not be internal")
	}
}
