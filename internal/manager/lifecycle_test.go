package manager

import (
	"errors"
	"testing"

	"github.com/stenstam/zonecore/internal/zone"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(t.TempDir(), nil, nil)
	t.Cleanup(m.Dispose)
	return m
}

func TestCreatePrimaryBootstrapsSOAAndNS(t *testing.T) {
	m := newTestManager(t)

	az, err := m.CreatePrimary("example.com.", "ns1.example.com.", "hostmaster.example.com.", 0)
	if err != nil {
		t.Fatalf("CreatePrimary: %v", err)
	}
	if az.Type != zone.Primary {
		t.Fatalf("expected Primary, got %v", az.Type)
	}
	soa, ok := az.SOARecord()
	if !ok {
		t.Fatalf("expected a bootstrapped SOA")
	}
	if soa.Serial != 1 {
		t.Fatalf("expected initial serial 1, got %d", soa.Serial)
	}
	if az.Journal == nil {
		t.Fatalf("expected a fresh journal to be wired for a new primary")
	}

	all := m.GetAllZones()
	if len(all) != 1 || all[0].Name != "example.com." {
		t.Fatalf("expected the new zone to appear in the index, got %+v", all)
	}
}

func TestCreatePrimaryRejectsDuplicate(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.CreatePrimary("example.com.", "ns1.example.com.", "hostmaster.example.com.", 0); err != nil {
		t.Fatalf("CreatePrimary: %v", err)
	}
	_, err := m.CreatePrimary("example.com.", "ns1.example.com.", "hostmaster.example.com.", 0)
	var zerr *zone.Error
	if !errors.As(err, &zerr) || zerr.Kind != zone.KindZoneAlreadyExists {
		t.Fatalf("expected ZoneAlreadyExists, got %v", err)
	}
}

func TestCreateSecondaryStartsEmpty(t *testing.T) {
	m := newTestManager(t)
	az, err := m.CreateSecondary("example.org.", "192.0.2.53")
	if err != nil {
		t.Fatalf("CreateSecondary: %v", err)
	}
	if az.Type != zone.Secondary || az.Upstream != "192.0.2.53" {
		t.Fatalf("unexpected secondary zone: %+v", az)
	}
	if _, ok := az.SOARecord(); ok {
		t.Fatalf("expected a fresh secondary to have no SOA until its first refresh")
	}
}

func TestCreateForwarderInstallsTargets(t *testing.T) {
	m := newTestManager(t)
	targets := []zone.FWDTarget{{Address: "192.0.2.1"}, {Address: "192.0.2.2"}}
	az, err := m.CreateForwarder("fwd.example.", targets)
	if err != nil {
		t.Fatalf("CreateForwarder: %v", err)
	}
	got, ok := az.FindForwarder(zone.NewName("fwd.example."))
	if !ok || len(got) != 2 {
		t.Fatalf("expected 2 forwarder targets, got %+v ok=%v", got, ok)
	}
}

func TestDeleteZoneRemovesFromRegistryAndIndex(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.CreatePrimary("example.com.", "ns1.example.com.", "hostmaster.example.com.", 0); err != nil {
		t.Fatalf("CreatePrimary: %v", err)
	}
	if err := m.DeleteZone("example.com."); err != nil {
		t.Fatalf("DeleteZone: %v", err)
	}
	if _, ok := m.Registry.Get(zone.NewName("example.com.")); ok {
		t.Fatalf("expected zone to be gone from the registry")
	}
	if len(m.GetAllZones()) != 0 {
		t.Fatalf("expected an empty index after delete")
	}
}

func TestDeleteZoneUnknownReturnsZoneNotFound(t *testing.T) {
	m := newTestManager(t)
	err := m.DeleteZone("nope.example.")
	var zerr *zone.Error
	if !errors.As(err, &zerr) || zerr.Kind != zone.KindZoneNotFound {
		t.Fatalf("expected ZoneNotFound, got %v", err)
	}
}

func TestCloneZoneRewritesOwnerNames(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.CreatePrimary("src.example.", "ns1.src.example.", "hostmaster.src.example.", 0); err != nil {
		t.Fatalf("CreatePrimary: %v", err)
	}
	rec := zone.Record{Name: zone.NewName("www.src.example."), RR: mustRR(t, "www.src.example. 300 IN A 192.0.2.9")}
	if err := m.AddRecord(rec); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	dst, err := m.CloneZone("src.example.", "dst.example.")
	if err != nil {
		t.Fatalf("CloneZone: %v", err)
	}
	if dst.Type != zone.Primary {
		t.Fatalf("expected clone to preserve zone type, got %v", dst.Type)
	}
	rrset, ok := dst.GetRecords(zone.NewName("www.dst.example."), zone.TypeA)
	if !ok || len(rrset.Records) != 1 {
		t.Fatalf("expected the cloned www record to be rewritten under dst.example., got %+v ok=%v", rrset, ok)
	}
}

func TestImportRecordsPopulatesWithoutJournal(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.CreatePrimary("example.com.", "ns1.example.com.", "hostmaster.example.com.", 0); err != nil {
		t.Fatalf("CreatePrimary: %v", err)
	}
	az, _ := m.Registry.Get(zone.NewName("example.com."))
	beforeLen := az.Journal.Len()

	recs := []zone.Record{
		{Name: zone.NewName("www.example.com."), RR: mustRR(t, "www.example.com. 300 IN A 192.0.2.10")},
	}
	if err := m.ImportRecords("example.com.", recs); err != nil {
		t.Fatalf("ImportRecords: %v", err)
	}
	if az.Journal.Len() != beforeLen {
		t.Fatalf("expected ImportRecords to bypass the journal, len changed from %d to %d", beforeLen, az.Journal.Len())
	}
	if rrset, ok := az.GetRecords(zone.NewName("www.example.com."), zone.TypeA); !ok || len(rrset.Records) != 1 {
		t.Fatalf("expected imported record to be queryable, got %+v ok=%v", rrset, ok)
	}
}
