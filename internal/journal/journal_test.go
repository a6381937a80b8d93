package journal

import (
	"fmt"
	"testing"

	"github.com/miekg/dns"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("dns.NewRR(%q): %v", s, err)
	}
	return rr
}

func soaSerial(t *testing.T, serial uint32) dns.RR {
	t.Helper()
	return mustRR(t, fmt.Sprintf("jain.ad.jp. 3600 IN SOA NS.JAIN.AD.JP. mohta.jain.ad.jp. %d 600 600 3600000 604800", serial))
}

// TestJournalCondense reproduces the RFC 1995 worked example: two diff
// sequences (serial 1->2, 2->3) condense to a single equivalent sequence
// with the short-lived jain-bb A 133.69.136.4 record canceled out.
func TestJournalCondense(t *testing.T) {
	j := New("jain.ad.jp.", 0)

	j.Append(soaSerial(t, 1),
		[]dns.RR{mustRR(t, "nezu.jain.ad.jp. A 133.69.136.5")},
		soaSerial(t, 2),
		[]dns.RR{
			mustRR(t, "jain-bb.jain.ad.jp. A 133.69.136.4"),
			mustRR(t, "jain-bb.jain.ad.jp. A 192.41.197.2"),
		})
	j.Append(soaSerial(t, 2),
		[]dns.RR{mustRR(t, "jain-bb.jain.ad.jp. A 133.69.136.4")},
		soaSerial(t, 3),
		[]dns.RR{mustRR(t, "jain-bb.jain.ad.jp. A 133.69.136.3")})

	if j.Len() != 2 {
		t.Fatalf("expected 2 retained sequences, got %d", j.Len())
	}

	seqs, ok := j.SequencesSince(1)
	if !ok {
		t.Fatalf("expected SequencesSince(1) to succeed")
	}
	compressed := Condense(seqs)

	if compressed.OldSerial() != 1 || compressed.NewSerial() != 3 {
		t.Fatalf("expected serials 1->3, got %d->%d", compressed.OldSerial(), compressed.NewSerial())
	}
	if len(compressed.Deleted) != 1 || compressed.Deleted[0].String() != mustRR(t, "nezu.jain.ad.jp. A 133.69.136.5").String() {
		t.Fatalf("expected only nezu.jain.ad.jp A to remain deleted, got %+v", compressed.Deleted)
	}
	wantAdded := map[string]bool{
		mustRR(t, "jain-bb.jain.ad.jp. A 192.41.197.2").String(): true,
		mustRR(t, "jain-bb.jain.ad.jp. A 133.69.136.3").String(): true,
	}
	if len(compressed.Added) != 2 {
		t.Fatalf("expected 2 added records to survive condensing, got %d", len(compressed.Added))
	}
	for _, rr := range compressed.Added {
		if !wantAdded[rr.String()] {
			t.Fatalf("unexpected added record survived condensing: %s", rr.String())
		}
	}
}

func TestSequencesSinceUnknownSerialFallsBackToAxfr(t *testing.T) {
	j := New("jain.ad.jp.", 0)
	j.Append(soaSerial(t, 1), nil, soaSerial(t, 2), nil)

	if _, ok := j.SequencesSince(99); ok {
		t.Fatalf("expected SequencesSince with an unknown serial to report ok=false")
	}
}

func TestSequencesSinceAlreadyCurrent(t *testing.T) {
	j := New("jain.ad.jp.", 0)
	j.Append(soaSerial(t, 1), nil, soaSerial(t, 2), nil)

	seqs, ok := j.SequencesSince(2)
	if !ok || len(seqs) != 0 {
		t.Fatalf("expected an already-current client to get ok=true with no sequences, got ok=%v len=%d", ok, len(seqs))
	}
}

func TestJournalMaxLenTrims(t *testing.T) {
	j := New("jain.ad.jp.", 2)
	j.Append(soaSerial(t, 1), nil, soaSerial(t, 2), nil)
	j.Append(soaSerial(t, 2), nil, soaSerial(t, 3), nil)
	j.Append(soaSerial(t, 3), nil, soaSerial(t, 4), nil)

	if j.Len() != 2 {
		t.Fatalf("expected journal trimmed to maxLen 2, got %d", j.Len())
	}
	if _, ok := j.SequencesSince(1); ok {
		t.Fatalf("expected the oldest sequence to have been trimmed away")
	}
}

func TestDiffSequenceEquals(t *testing.T) {
	a := DiffSequence{
		OldSOA: soaSerial(t, 1), NewSOA: soaSerial(t, 2),
		Added: []dns.RR{mustRR(t, "a.example.com. A 192.0.2.1")},
	}
	b := DiffSequence{
		OldSOA: soaSerial(t, 1), NewSOA: soaSerial(t, 2),
		Added: []dns.RR{mustRR(t, "a.example.com. A 192.0.2.1")},
	}
	if !a.Equals(b) {
		t.Fatalf("expected identical sequences to be Equal")
	}
}
