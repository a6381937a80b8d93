package transfer

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/journal"
	"github.com/stenstam/zonecore/internal/zone"
)

// QueryIncrementalZoneTransferRecords builds the IXFR response for a
// client currently at clientSerial: up-to-date clients get a single-SOA
// response, clients within the retained journal window get the
// wire-framed diff sequences (RFC 1995), and clients at any serial the
// journal has no sequence for (e.g. older than its retention) fall back
// to a full AXFR (isAxfr=true).
func QueryIncrementalZoneTransferRecords(apex *zone.ApexZone, j *journal.Journal, clientSerial uint32) (records []dns.RR, isAxfr bool, err error) {
	soaSet, ok := apex.GetRecords(apex.Name, zone.TypeSOA)
	if !ok || soaSet.Empty() {
		return nil, false, fmt.Errorf("zone %s has no SOA, cannot serve IXFR", apex.Name)
	}
	currentSOA := soaSet.Records[0].RR

	if clientSerial == apex.Serial() {
		return []dns.RR{currentSOA}, false, nil
	}

	seqs, ok := j.SequencesSince(clientSerial)
	if !ok {
		axfr, err := QueryZoneTransferRecords(apex)
		return axfr, true, err
	}

	out := []dns.RR{dns.Copy(currentSOA)}
	for _, seq := range seqs {
		out = append(out, seq.OldSOA)
		out = append(out, seq.Deleted...)
		out = append(out, seq.NewSOA)
		out = append(out, seq.Added...)
	}
	out = append(out, dns.Copy(currentSOA))
	return out, false, nil
}

// ToZoneIxfrSequences converts condensed/retained journal diff sequences
// into the zone package's transfer-facing IxfrSequence shape, the form
// ApexZone.SyncIncrementalZoneTransferRecords consumes on the secondary
// side of a transfer.
func ToZoneIxfrSequences(seqs []journal.DiffSequence) []zone.IxfrSequence {
	out := make([]zone.IxfrSequence, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, zone.IxfrSequence{
			OldSOA:  s.OldSOA.(*dns.SOA),
			Deleted: s.Deleted,
			NewSOA:  s.NewSOA.(*dns.SOA),
			Added:   s.Added,
		})
	}
	return out
}
