package manager

import (
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/journal"
	"github.com/stenstam/zonecore/internal/snapshot"
	"github.com/stenstam/zonecore/internal/zone"
)

// SaveZoneFile records name in the pending-save set and arms the single
// debounce timer if one isn't already running. Internal zones are
// silently skipped; they are never written to disk.
func (m *Manager) SaveZoneFile(name string) {
	if IsInternalZone(name) {
		return
	}
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.disposed {
		return
	}
	m.pending[zone.NewName(name).Key()] = true
	if m.saveTimer == nil {
		m.saveTimer = time.AfterFunc(SaveDebounce, m.flushPending)
	}
}

func (m *Manager) flushPending() {
	m.pendingMu.Lock()
	names := make([]string, 0, len(m.pending))
	for n := range m.pending {
		names = append(names, n)
	}
	m.pending = map[string]bool{}
	m.saveTimer = nil
	disposed := m.disposed
	m.pendingMu.Unlock()
	if disposed {
		return
	}

	var failed []string
	for _, n := range names {
		if err := m.saveOne(zone.NewName(n)); err != nil {
			m.log.WriteException(err)
			failed = append(failed, n)
		}
	}

	if len(failed) > 0 {
		m.pendingMu.Lock()
		for _, n := range failed {
			m.pending[n] = true
		}
		if m.saveTimer == nil && !m.disposed {
			m.saveTimer = time.AfterFunc(SaveDebounce, m.flushPending)
		}
		m.pendingMu.Unlock()
	}
}

func (m *Manager) saveOne(name zone.Name) error {
	az, ok := m.Registry.Get(name)
	if !ok {
		return nil // deleted since it was queued
	}
	info := snapshot.Info{
		Name:         az.Name.String(),
		Type:         az.Type,
		Disabled:     az.Disabled,
		Dnssec:       az.Dnssec,
		LastModified: az.LastModified,
	}
	if tp := az.TransferPolicy.AllowedFrom; tp != nil {
		info.TransferAllowed = tp
	}
	if np := az.NotifyPolicy.Downstreams; np != nil {
		info.NotifyDownstream = np
	}
	info.UpdateAllowed = az.UpdatePolicy.Allow
	for t := range az.UpdatePolicy.RRTypes {
		info.UpdateRRTypes = append(info.UpdateRRTypes, t)
	}

	if err := snapshot.Write(m.zoneFilePath(name), info, az.AllRecords()); err != nil {
		return &zone.Error{Kind: zone.KindIOFailure, Zone: name.String(), Msg: "saving zone file", Err: err}
	}
	return nil
}

// Dispose flushes every pending save synchronously and stops the
// debounce timer.
func (m *Manager) Dispose() {
	m.pendingMu.Lock()
	m.disposed = true
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	m.pendingMu.Unlock()
	m.flushPendingSync()
}

func (m *Manager) flushPendingSync() {
	m.pendingMu.Lock()
	names := make([]string, 0, len(m.pending))
	for n := range m.pending {
		names = append(names, n)
	}
	m.pending = map[string]bool{}
	m.pendingMu.Unlock()

	for _, n := range names {
		if err := m.saveOne(zone.NewName(n)); err != nil {
			m.log.WriteException(err)
		}
	}
}

// LoadZoneFile reads path and, if it parses, creates (or repopulates) the
// named zone from its contents: v2/v3/v4 snapshots accepted, legacy
// versions migrated forward in memory. A bad magic or unknown version is
// an InvalidZoneFile error; the caller should log it and continue with
// other zones.
func (m *Manager) LoadZoneFile(path string) (*zone.ApexZone, error) {
	info, records, err := snapshot.Read(path)
	if err != nil {
		return nil, &zone.Error{Kind: zone.KindInvalidZoneFile, Msg: fmt.Sprintf("loading %s", path), Err: err}
	}

	n := zone.NewName(info.Name)
	az, exists := m.Registry.Get(n)
	if !exists {
		az = zone.NewApexZone(m.Registry.Tree, n, info.Type)
		if info.Type == zone.Primary {
			az.Journal = journal.New(n.Key(), 0)
		}
		m.Registry.Put(az)
	}
	az.Disabled = info.Disabled
	az.Dnssec = info.Dnssec
	az.TransferPolicy = zone.TransferPolicy{AllowedFrom: info.TransferAllowed}
	az.NotifyPolicy = zone.NotifyPolicy{Downstreams: info.NotifyDownstream}
	az.UpdatePolicy.Allow = info.UpdateAllowed
	if len(info.UpdateRRTypes) > 0 {
		az.UpdatePolicy.RRTypes = map[zone.RecordType]bool{}
		for _, t := range info.UpdateRRTypes {
			az.UpdatePolicy.RRTypes[t] = true
		}
	}
	az.LastModified = info.LastModified
	az.LoadRecords(records)

	m.putIndex(az)
	return az, nil
}

// UpdateServerDomain propagates a hostname change into every Primary
// zone's apex SOA PrimaryNS field and its matching NS record. The work
// runs on its own goroutine so admin calls never block on it.
func (m *Manager) UpdateServerDomain(newDomain string) {
	go m.updateServerDomainSync(newDomain)
}

func (m *Manager) updateServerDomainSync(newDomain string) {
	newDomain = dns.Fqdn(newDomain)
	for _, name := range m.Registry.Names() {
		az, ok := m.Registry.Get(zone.NewName(name))
		if !ok || az.Type != zone.Primary {
			continue
		}
		soa, ok := az.SOARecord()
		if !ok {
			continue
		}
		oldNS := soa.Ns
		newSOA := dns.Copy(soa).(*dns.SOA)
		newSOA.Ns = newDomain
		if err := az.UpdateRecord(az.Name, soa, newSOA); err != nil {
			m.log.WriteException(fmt.Errorf("updating SOA PrimaryNS for %s: %w", name, err))
			continue
		}

		nsSet, ok := az.GetRecords(az.Name, zone.TypeNS)
		if !ok {
			continue
		}
		for _, rec := range nsSet.Records {
			ns, ok := rec.RR.(*dns.NS)
			if !ok || ns.Ns != oldNS {
				continue
			}
			newNS := dns.Copy(ns).(*dns.NS)
			newNS.Ns = newDomain
			if err := az.UpdateRecord(az.Name, ns, newNS); err != nil {
				m.log.WriteException(fmt.Errorf("updating NS record for %s: %w", name, err))
			}
		}
		m.refreshIndex(az)
	}
}
