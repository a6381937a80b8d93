package manager

import (
	"context"
	"fmt"
	"testing"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/zone"
)

type fakeTransferClient struct {
	serial  uint32
	records []dns.RR
	fail    bool
	fetches int
}

func (f *fakeTransferClient) FetchSOA(ctx context.Context, zoneName, upstream string) (uint32, error) {
	if f.fail {
		return 0, fmt.Errorf("upstream unreachable")
	}
	return f.serial, nil
}

func (f *fakeTransferClient) FetchAXFR(ctx context.Context, zoneName, upstream string) ([]dns.RR, error) {
	if f.fail {
		return nil, fmt.Errorf("upstream unreachable")
	}
	f.fetches++
	return f.records, nil
}

func TestRefresherAttemptAppliesAXFR(t *testing.T) {
	m := newTestManager(t)
	az, err := m.CreateSecondary("example.org.", "192.0.2.53")
	if err != nil {
		t.Fatalf("CreateSecondary: %v", err)
	}

	soa := mustRR(t, "example.org. 3600 IN SOA ns1.example.org. hostmaster.example.org. 7 3600 600 604800 3600")
	client := &fakeTransferClient{
		serial: 7,
		records: []dns.RR{
			soa,
			mustRR(t, "example.org. 3600 IN NS ns1.example.org."),
			mustRR(t, "www.example.org. 300 IN A 192.0.2.1"),
			dns.Copy(soa),
		},
	}
	r := NewRefresher(m, client, nil)

	r.attempt(context.Background(), zone.NewName("example.org."))

	if az.Serial() != 7 {
		t.Fatalf("expected refreshed serial 7, got %d", az.Serial())
	}
	if az.RefreshState != zone.Idle {
		t.Fatalf("expected Idle after successful refresh, got %v", az.RefreshState)
	}
	if az.LastRefreshed.IsZero() {
		t.Fatalf("expected LastRefreshed to be stamped")
	}
	if rrset, ok := az.GetRecords(zone.NewName("www.example.org."), zone.TypeA); !ok || len(rrset.Records) != 1 {
		t.Fatalf("expected transferred A record to be queryable, got %+v ok=%v", rrset, ok)
	}
}

func TestRefresherAttemptFailureSetsFailed(t *testing.T) {
	m := newTestManager(t)
	az, err := m.CreateSecondary("example.org.", "192.0.2.53")
	if err != nil {
		t.Fatalf("CreateSecondary: %v", err)
	}
	r := NewRefresher(m, &fakeTransferClient{fail: true}, nil)

	r.attempt(context.Background(), zone.NewName("example.org."))

	if az.RefreshState != zone.Failed {
		t.Fatalf("expected Failed after an unreachable upstream, got %v", az.RefreshState)
	}
}

func TestRefresherSkipsWhenAlreadyCurrent(t *testing.T) {
	m := newTestManager(t)
	az, err := m.CreateSecondary("example.org.", "192.0.2.53")
	if err != nil {
		t.Fatalf("CreateSecondary: %v", err)
	}
	soa := mustRR(t, "example.org. 3600 IN SOA ns1.example.org. hostmaster.example.org. 7 3600 600 604800 3600")
	client := &fakeTransferClient{
		serial:  7,
		records: []dns.RR{soa, mustRR(t, "example.org. 3600 IN NS ns1.example.org."), dns.Copy(soa)},
	}
	r := NewRefresher(m, client, nil)

	r.attempt(context.Background(), zone.NewName("example.org."))
	r.attempt(context.Background(), zone.NewName("example.org."))

	if client.fetches != 1 {
		t.Fatalf("expected the second attempt to skip AXFR for an already-current serial, got %d fetches", client.fetches)
	}
	if az.RefreshState != zone.Idle {
		t.Fatalf("expected Idle, got %v", az.RefreshState)
	}
}

func TestSerialNewerWrapsSequenceSpace(t *testing.T) {
	cases := []struct {
		candidate, current uint32
		want               bool
	}{
		{2, 1, true},
		{1, 2, false},
		{1, 1, false},
		{0, 4294967295, true}, // wraparound
	}
	for _, c := range cases {
		if got := serialNewer(c.candidate, c.current); got != c.want {
			t.Fatalf("serialNewer(%d, %d) = %v, want %v", c.candidate, c.current, got, c.want)
		}
	}
}

type fakeNotifier struct {
	zone        string
	serial      uint32
	downstreams []string
}

func (f *fakeNotifier) Notify(zoneName string, serial uint32, downstreams []string) {
	f.zone = zoneName
	f.serial = serial
	f.downstreams = downstreams
}

func TestNotifyDownstreams(t *testing.T) {
	m := newTestManager(t)
	az, err := m.CreatePrimary("example.com.", "ns1.example.com.", "hostmaster.example.com.", 0)
	if err != nil {
		t.Fatalf("CreatePrimary: %v", err)
	}
	az.NotifyPolicy.Downstreams = []string{"192.0.2.54"}

	n := &fakeNotifier{}
	m.NotifyDownstreams("example.com.", n)
	if n.zone != "example.com." || n.serial != az.Serial() || len(n.downstreams) != 1 {
		t.Fatalf("unexpected notify call: %+v", n)
	}
}

func TestRefresherTickSeedsCounters(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.CreateSecondary("example.org.", "192.0.2.53"); err != nil {
		t.Fatalf("CreateSecondary: %v", err)
	}
	r := NewRefresher(m, &fakeTransferClient{fail: true}, nil)
	r.tick(context.Background())

	rc, ok := r.counters.Get("example.org.")
	if !ok {
		t.Fatalf("expected tick to seed a refresh counter for the new secondary")
	}
	if rc.curRefresh != zone.DefaultSOARefresh {
		t.Fatalf("expected bootstrap countdown %d, got %d", zone.DefaultSOARefresh, rc.curRefresh)
	}
}
