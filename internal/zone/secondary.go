package zone

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// RefreshTimers reports the refresh/retry/expire intervals currently in
// effect for a Secondary/Stub zone, drawn from the apex SOA once one has
// been pulled.
func (z *ApexZone) RefreshTimers() (refresh, retry, expire uint32) {
	if soa, ok := z.SOARecord(); ok {
		return soa.Refresh, soa.Retry, soa.Expire
	}
	return z.SOARefresh, z.SOARetry, z.SOAExpire
}

// BeginRefresh transitions Idle -> Refreshing, returning false if a
// refresh of this zone is already in progress.
func (z *ApexZone) BeginRefresh() bool {
	if !z.RefreshingLock.TryLock() {
		return false
	}
	z.mu.Lock()
	z.RefreshState = Refreshing
	z.mu.Unlock()
	return true
}

// EndRefresh transitions out of Refreshing: Idle on success, Failed on
// failure, or Expired if the expire timer has elapsed since the last
// successful refresh.
func (z *ApexZone) EndRefresh(ok bool) {
	defer z.RefreshingLock.Unlock()
	z.mu.Lock()
	defer z.mu.Unlock()
	if ok {
		z.RefreshState = Idle
		z.LastRefreshed = time.Now()
		return
	}
	_, _, expire := z.RefreshTimers()
	if !z.LastRefreshed.IsZero() && time.Since(z.LastRefreshed) > time.Duration(expire)*time.Second {
		z.RefreshState = Expired
	} else {
		z.RefreshState = Failed
	}
}

// validateSOAFraming checks that a transfer's record list begins and
// ends with the same SOA and that it is owned by the zone apex.
func validateSOAFraming(zoneName Name, records []dns.RR) (*dns.SOA, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("transfer too short to be framed by SOA")
	}
	first, ok := records[0].(*dns.SOA)
	if !ok {
		return nil, fmt.Errorf("transfer does not start with SOA")
	}
	last, ok := records[len(records)-1].(*dns.SOA)
	if !ok {
		return nil, fmt.Errorf("transfer does not end with SOA")
	}
	if first.Serial != last.Serial {
		return nil, fmt.Errorf("framing SOA serial mismatch: %d != %d", first.Serial, last.Serial)
	}
	if NewName(first.Hdr.Name).Key() != zoneName.Key() {
		return nil, fmt.Errorf("framing SOA owner %s does not match zone %s", first.Hdr.Name, zoneName)
	}
	return first, nil
}

// SyncZoneTransferRecords applies a full AXFR record list to a Secondary
// (or Stub) zone: it validates SOA framing, rebuilds every affected node
// from scratch, and re-attaches glue onto NS records by matching name.
// TTLs and data become authoritative once accepted.
func (z *ApexZone) SyncZoneTransferRecords(records []dns.RR) error {
	if z.Type != Secondary && z.Type != Stub {
		return newErr(KindOperationNotSupported, z.Name.String(), "only Secondary/Stub zones accept zone transfer sync")
	}
	if _, err := validateSOAFraming(z.Name, records); err != nil {
		return wrapErr(KindInvalidZoneTransfer, z.Name.String(), err, "AXFR framing invalid")
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	// Rebuild: collect per-(name,type) record groups, skipping the
	// trailing duplicate framing SOA.
	groups := map[string]map[RecordType][]dns.RR{}
	order := []Name{}
	seen := map[string]bool{}
	for i, rr := range records {
		if i == len(records)-1 {
			if _, ok := rr.(*dns.SOA); ok {
				continue // trailing framing SOA, already represented by the first
			}
		}
		name := NewName(rr.Header().Name)
		if groups[name.Key()] == nil {
			groups[name.Key()] = map[RecordType][]dns.RR{}
		}
		groups[name.Key()][rr.Header().Rrtype] = append(groups[name.Key()][rr.Header().Rrtype], rr)
		if !seen[name.Key()] {
			seen[name.Key()] = true
			order = append(order, name)
		}
	}

	for _, name := range order {
		node := z.Tree.GetOrAddSubDomainZone(name, nil)
		for _, t := range node.RRtypes.Keys() {
			node.RRtypes.Delete(t)
		}
		for t, rrs := range groups[name.Key()] {
			var recs []Record
			for _, rr := range rrs {
				recs = append(recs, Record{Name: name, RR: rr})
			}
			node.RRtypes.Set(t, RRSet{Name: name, RRtype: t, Records: recs})
		}
	}
	reattachGlue(z.node, order)

	z.LastModified = time.Now()
	return nil
}

// reattachGlue walks every NS RRset in the just-loaded name set and tags
// each NS record with any A/AAAA records published at the NS target
// name. Glue travels on the NS record, not as queryable records.
func reattachGlue(apexNode *Node, names []Name) {
	byKey := map[string]*Node{}
	collect(apexNode, byKey)

	for _, name := range names {
		node, ok := byKey[name.Key()]
		if !ok {
			continue
		}
		nsRRset, ok := node.RRtypes.Get(TypeNS)
		if !ok {
			continue
		}
		for i, rec := range nsRRset.Records {
			ns, ok := rec.RR.(*dns.NS)
			if !ok {
				continue
			}
			target := NewName(ns.Ns)
			targetNode, ok := byKey[target.Key()]
			if !ok {
				continue
			}
			tag := rec.Tag.NS
			if tag == nil {
				tag = &NSTag{}
			}
			// Rebuild the glue lists from scratch: a reload re-runs this
			// over tags that may already carry the same glue from the
			// snapshot, and appending would duplicate it on every cycle.
			tag.GlueA = nil
			tag.GlueAAAA = nil
			if a, ok := targetNode.RRtypes.Get(TypeA); ok {
				for _, r := range a.Records {
					tag.GlueA = append(tag.GlueA, r.RR)
				}
			}
			if aaaa, ok := targetNode.RRtypes.Get(TypeAAAA); ok {
				for _, r := range aaaa.Records {
					tag.GlueAAAA = append(tag.GlueAAAA, r.RR)
				}
			}
			rec.Tag.NS = tag
			nsRRset.Records[i] = rec
		}
		node.RRtypes.Set(TypeNS, nsRRset)
	}
}

func collect(n *Node, out map[string]*Node) {
	out[n.name.Key()] = n
	for _, label := range n.childNames() {
		if child, ok := n.children.Get(label); ok {
			collect(child, out)
		}
	}
}

// SyncIncrementalZoneTransferRecords applies a list of IXFR diff
// sequences in order. Each sequence's deleted-SOA serial must equal the
// zone's current serial before application, otherwise the whole
// application fails with InvalidZoneTransfer and the zone is left
// unchanged.
func (z *ApexZone) SyncIncrementalZoneTransferRecords(sequences []IxfrSequence) error {
	if z.Type != Secondary {
		return newErr(KindOperationNotSupported, z.Name.String(), "only Secondary zones accept incremental transfer sync")
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	// Check the whole serial chain before touching the tree, so a
	// mismatch in a later sequence leaves the zone unchanged.
	current := z.Serial()
	for _, seq := range sequences {
		if seq.OldSOA.Serial != current {
			return newErr(KindInvalidZoneTransfer, z.Name.String(),
				"IXFR sequence deleted-SOA serial %d does not match current serial %d", seq.OldSOA.Serial, current)
		}
		current = seq.NewSOA.Serial
	}

	for _, seq := range sequences {
		for _, rr := range seq.Deleted {
			name := NewName(rr.Header().Name)
			node, ok := z.Tree.GetNode(name)
			if !ok {
				continue
			}
			_ = node.RRtypes.DeleteRecord(rr)
			if node.RRtypes.IsEmpty() && !node.IsApex() {
				z.Tree.TryRemove(name)
			}
		}
		for _, rr := range seq.Added {
			name := NewName(rr.Header().Name)
			node := z.Tree.GetOrAddSubDomainZone(name, nil)
			node.RRtypes.AddRecord(Record{Name: name, RR: rr})
		}
		z.setApexSOA(seq.NewSOA)
	}

	names := []Name{}
	collectNames(z.node, &names)
	reattachGlue(z.node, names)
	z.LastModified = time.Now()
	return nil
}

// setApexSOA replaces the apex SOA with soa while preserving the
// existing record's tag metadata (disabled flag, serial scheme).
func (z *ApexZone) setApexSOA(soa *dns.SOA) {
	rrset, ok := z.node.RRtypes.Get(TypeSOA)
	rec := Record{Name: z.Name, RR: dns.Copy(soa)}
	if ok && len(rrset.Records) > 0 {
		rec.Tag = rrset.Records[0].Tag
	}
	z.node.RRtypes.Set(TypeSOA, RRSet{Name: z.Name, RRtype: TypeSOA, Records: []Record{rec}})
}

func collectNames(n *Node, out *[]Name) {
	*out = append(*out, n.name)
	for _, label := range n.childNames() {
		if child, ok := n.children.Get(label); ok {
			collectNames(child, out)
		}
	}
}

// IxfrSequence mirrors the journal's wire-level diff sequence shape
// (old-SOA, deleted, new-SOA, added) without importing the journal
// package.
type IxfrSequence struct {
	OldSOA  *dns.SOA
	Deleted []dns.RR
	NewSOA  *dns.SOA
	Added   []dns.RR
}
