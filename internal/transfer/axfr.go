// Package transfer produces the record streams for AXFR and IXFR: SOA,
// the rest of the apex's own RRsets, the rest of the zone, then the
// trailing SOA. The actual wire writer (dns.Transfer / net.Conn) belongs
// to the listener layer; this package only builds the record list and
// chunks it for whatever listener calls it.
package transfer

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/zone"
)

// EnvelopeSize caps how many records a single AXFR/IXFR envelope
// carries before the listener flushes a dns.Envelope.
const EnvelopeSize = 400

// QueryZoneTransferRecords builds the full AXFR record list for apex:
// [SOA, apex's other RRsets, every other owner's RRsets, trailing SOA].
// Disabled records are omitted; RRSIGs ride along with their RRset when
// present.
func QueryZoneTransferRecords(apex *zone.ApexZone) ([]dns.RR, error) {
	soaSet, ok := apex.GetRecords(apex.Name, zone.TypeSOA)
	if !ok || soaSet.Empty() {
		return nil, fmt.Errorf("zone %s has no SOA, cannot serve AXFR", apex.Name)
	}
	soa := soaSet.Records[0].RR

	var out []dns.RR
	out = append(out, soa)
	out = append(out, soaSet.RRSIGs...)

	node := apex.Node()
	for _, t := range node.RRtypes.Keys() {
		if t == zone.TypeSOA {
			continue
		}
		rrset, _ := node.RRtypes.Get(t)
		out = append(out, rrset.RRs()...)
		out = append(out, rrset.RRSIGs...)
	}

	walkZone(node, apex.Name, &out)

	out = append(out, dns.Copy(soa))
	return out, nil
}

// walkZone appends every non-apex-root owner's RRsets within this zone,
// stopping at any node that is itself a different apex's root (a
// delegation to a separately-loaded zone is not this zone's data beyond
// the NS/glue already published at the cut).
func walkZone(apexNode *zone.Node, apexName zone.Name, out *[]dns.RR) {
	for _, label := range apexNode.ChildLabels() {
		child, ok := apexNode.ChildByLabel(label)
		if !ok {
			continue
		}
		appendSubtree(child, out)
	}
}

func appendSubtree(n *zone.Node, out *[]dns.RR) {
	if n.IsApex() {
		return // a different zone's apex; not part of this transfer
	}
	for _, t := range n.RRtypes.Keys() {
		rrset, _ := n.RRtypes.Get(t)
		*out = append(*out, rrset.RRs()...)
		*out = append(*out, rrset.RRSIGs...)
	}
	for _, label := range n.ChildLabels() {
		if child, ok := n.ChildByLabel(label); ok {
			appendSubtree(child, out)
		}
	}
}

// Envelopes splits records into chunks of at most EnvelopeSize, the
// grouping a listener hands to successive dns.Envelope sends.
func Envelopes(records []dns.RR) [][]dns.RR {
	if len(records) == 0 {
		return nil
	}
	var out [][]dns.RR
	for len(records) > EnvelopeSize {
		out = append(out, records[:EnvelopeSize])
		records = records[EnvelopeSize:]
	}
	out = append(out, records)
	return out
}
