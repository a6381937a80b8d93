package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

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

func TestWriteReadRoundTripV4(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.com.zone")

	info := Info{
		Name:             "example.com.",
		Type:             zone.Primary,
		Disabled:         false,
		Dnssec:           zone.Unsigned,
		TransferAllowed:  []string{"192.0.2.53"},
		NotifyDownstream: []string{"192.0.2.54"},
		UpdateAllowed:    true,
		UpdateRRTypes:    []uint16{zone.TypeA, zone.TypeAAAA},
		LastModified:     time.Unix(1700000000, 0).UTC(),
	}
	records := []zone.Record{
		{Name: zone.NewName("example.com."), RR: mustRR(t, "example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 3600 600 604800 3600")},
		{
			Name: zone.NewName("ns1.example.com."),
			RR:   mustRR(t, "ns1.example.com. 3600 IN NS example.com."),
			Tag: zone.RecordTag{NS: &zone.NSTag{
				GlueA: []dns.RR{mustRR(t, "ns1.example.com. 3600 IN A 192.0.2.1")},
			}},
		},
		{
			Name: zone.NewName("example.com."),
			RR:   mustRR(t, "example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 3600 600 604800 3600"),
			Tag:  zone.RecordTag{SOA: &zone.SOATag{SerialScheme: zone.SerialDateEncoded}},
		},
	}

	if err := Write(path, info, records); err != nil {
		t.Fatalf("Write: %v", err)
	}

	gotInfo, gotRecords, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotInfo.Name != info.Name || gotInfo.Type != info.Type || gotInfo.Dnssec != info.Dnssec {
		t.Fatalf("info mismatch: got %+v, want %+v", gotInfo, info)
	}
	if len(gotInfo.TransferAllowed) != 1 || gotInfo.TransferAllowed[0] != "192.0.2.53" {
		t.Fatalf("unexpected TransferAllowed: %+v", gotInfo.TransferAllowed)
	}
	if !gotInfo.UpdateAllowed || len(gotInfo.UpdateRRTypes) != 2 {
		t.Fatalf("unexpected update policy: %+v", gotInfo)
	}
	if !gotInfo.LastModified.Equal(info.LastModified) {
		t.Fatalf("LastModified mismatch: got %v, want %v", gotInfo.LastModified, info.LastModified)
	}
	if len(gotRecords) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(gotRecords))
	}

	foundGlue := false
	foundSOATag := false
	for _, rec := range gotRecords {
		if rec.Tag.NS != nil {
			if len(rec.Tag.NS.GlueA) != 1 || rec.Tag.NS.GlueA[0].String() != mustRR(t, "ns1.example.com. 3600 IN A 192.0.2.1").String() {
				t.Fatalf("glue A did not round-trip: %+v", rec.Tag.NS.GlueA)
			}
			foundGlue = true
		}
		if rec.Tag.SOA != nil {
			if rec.Tag.SOA.SerialScheme != zone.SerialDateEncoded {
				t.Fatalf("SOA tag serial scheme did not round-trip: %+v", rec.Tag.SOA)
			}
			foundSOATag = true
		}
	}
	if !foundGlue {
		t.Fatalf("expected one record to carry NS glue tag")
	}
	if !foundSOATag {
		t.Fatalf("expected one record to carry an SOA tag")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zone")
	if err := Write(path, Info{Name: "example.com."}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Corrupt the magic in place.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[0] = 'X'
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := Read(path); err == nil {
		t.Fatalf("expected Read to reject a corrupted magic")
	}
}
