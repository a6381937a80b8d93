// Package journal records the sequence of SOA-bounded diffs a Primary
// zone has applied, condensing them into a single DiffSequence on
// demand for IXFR.
package journal

import (
	"fmt"
	"sync"

	"github.com/miekg/dns"
)

// DiffSequence is one SOA-to-SOA diff, carrying the SOA records
// themselves so the IXFR producer can frame each sequence on the wire.
type DiffSequence struct {
	OldSOA  dns.RR
	NewSOA  dns.RR
	Deleted []dns.RR
	Added   []dns.RR
}

func (d DiffSequence) OldSerial() uint32 { return d.OldSOA.(*dns.SOA).Serial }
func (d DiffSequence) NewSerial() uint32 { return d.NewSOA.(*dns.SOA).Serial }

// Equals compares two sequences by serial bounds and rdata content.
func (d DiffSequence) Equals(other DiffSequence) bool {
	if d.OldSerial() != other.OldSerial() || d.NewSerial() != other.NewSerial() {
		return false
	}
	return rrSetEqual(d.Added, other.Added) && rrSetEqual(d.Deleted, other.Deleted)
}

func rrSetEqual(a, b []dns.RR) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[string]int{}
	for _, rr := range a {
		seen[rr.String()]++
	}
	for _, rr := range b {
		seen[rr.String()]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

// Journal is the ordered, monotone-by-serial list of diff sequences for
// one zone. Zones are read far more than written, so journal access uses
// an RWMutex.
type Journal struct {
	mu        sync.RWMutex
	zone      string
	sequences []DiffSequence
	maxLen    int
}

// New creates an empty journal for zone, retaining at most maxLen
// sequences (0 means unbounded). The journal is trimmed from the front;
// clients older than the retained window fall back to AXFR anyway.
func New(zone string, maxLen int) *Journal {
	return &Journal{zone: zone, maxLen: maxLen}
}

// Append records one mutation's diff, satisfying zone.Journaler.
func (j *Journal) Append(oldSOA dns.RR, deleted []dns.RR, newSOA dns.RR, added []dns.RR) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sequences = append(j.sequences, DiffSequence{
		OldSOA:  dns.Copy(oldSOA),
		NewSOA:  dns.Copy(newSOA),
		Deleted: deleted,
		Added:   added,
	})
	if j.maxLen > 0 && len(j.sequences) > j.maxLen {
		j.sequences = j.sequences[len(j.sequences)-j.maxLen:]
	}
}

// Len reports how many diff sequences are retained, satisfying
// zone.Journaler.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.sequences)
}

// SequencesSince returns the retained sequences from the one whose
// OldSerial equals fromSerial onward, in order, or ok=false if no
// retained sequence starts at fromSerial, e.g. because it is older than
// the oldest retained sequence (the caller must fall back to AXFR).
func (j *Journal) SequencesSince(fromSerial uint32) (out []DiffSequence, ok bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.sequences) == 0 {
		return nil, fromSerial == 0
	}
	if fromSerial == j.sequences[len(j.sequences)-1].NewSerial() {
		return nil, true // already current
	}
	for i, seq := range j.sequences {
		if seq.OldSerial() == fromSerial {
			out = append(out, j.sequences[i:]...)
			return out, true
		}
	}
	return nil, false
}

// Condense collapses a contiguous run of sequences into one equivalent
// DiffSequence: concatenate every Added/Deleted list, then cancel out
// records that were both added and later deleted (or vice versa) within
// the span. Cancellation keys on owner+type+rdata so a record only ever
// cancels against its exact rdata match.
func Condense(sequences []DiffSequence) DiffSequence {
	if len(sequences) == 0 {
		return DiffSequence{}
	}
	first, last := sequences[0], sequences[len(sequences)-1]
	out := DiffSequence{OldSOA: first.OldSOA, NewSOA: last.NewSOA}

	added := map[string]dns.RR{}
	deleted := map[string]dns.RR{}
	var addedOrder, deletedOrder []string

	for _, seq := range sequences {
		for _, rr := range seq.Added {
			key := rrKey(rr)
			if _, wasDeleted := deleted[key]; wasDeleted {
				delete(deleted, key)
				continue
			}
			if _, exists := added[key]; !exists {
				addedOrder = append(addedOrder, key)
			}
			added[key] = rr
		}
		for _, rr := range seq.Deleted {
			key := rrKey(rr)
			if _, wasAdded := added[key]; wasAdded {
				delete(added, key)
				continue
			}
			if _, exists := deleted[key]; !exists {
				deletedOrder = append(deletedOrder, key)
			}
			deleted[key] = rr
		}
	}
	for _, k := range addedOrder {
		if rr, ok := added[k]; ok {
			out.Added = append(out.Added, rr)
		}
	}
	for _, k := range deletedOrder {
		if rr, ok := deleted[k]; ok {
			out.Deleted = append(out.Deleted, rr)
		}
	}
	return out
}

func rrKey(rr dns.RR) string {
	return fmt.Sprintf("%s+%d+%s", rr.Header().Name, rr.Header().Rrtype, rr.String())
}
