package zone

import (
	"fmt"

	"github.com/miekg/dns"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// RRSet is a set of records sharing (name, type). TTLs must be
// identical on publication; transfer-in may re-align them.
type RRSet struct {
	Name   Name
	RRtype RecordType
	Records []Record
	RRSIGs  []dns.RR
}

func (s RRSet) Empty() bool { return len(s.Records) == 0 }

// RRs returns the bare dns.RR values, in publication order.
func (s RRSet) RRs() []dns.RR {
	out := make([]dns.RR, 0, len(s.Records))
	for _, r := range s.Records {
		if !r.Disabled() {
			out = append(out, r.RR)
		}
	}
	return out
}

// AlignTTL rewrites every record's TTL to match the first record's TTL,
// used when accepting transferred-in RRsets with mixed TTLs.
func (s *RRSet) AlignTTL() {
	if len(s.Records) == 0 {
		return
	}
	ttl := s.Records[0].RR.Header().Ttl
	for i := range s.Records {
		s.Records[i].RR.Header().Ttl = ttl
	}
}

// RRTypeStore is a node's mapping type -> RRSet, backed by a concurrent
// map so that reads never block other reads.
type RRTypeStore struct {
	data cmap.ConcurrentMap[RecordType, RRSet]
}

func NewRRTypeStore() *RRTypeStore {
	return &RRTypeStore{
		data: cmap.NewWithCustomShardingFunction[RecordType, RRSet](func(key RecordType) uint32 {
			return uint32(key)
		}),
	}
}

func (s *RRTypeStore) Get(t RecordType) (RRSet, bool) { return s.data.Get(t) }

func (s *RRTypeStore) GetOnly(t RecordType) RRSet {
	rrset, _ := s.data.Get(t)
	return rrset
}

func (s *RRTypeStore) Set(t RecordType, rrset RRSet) { s.data.Set(t, rrset) }

func (s *RRTypeStore) Delete(t RecordType) { s.data.Remove(t) }

func (s *RRTypeStore) Count() int { return s.data.Count() }

func (s *RRTypeStore) Keys() []RecordType { return s.data.Keys() }

func (s *RRTypeStore) IsEmpty() bool { return s.data.Count() == 0 }

// AddRecord inserts or updates a single record within its RRSet,
// de-duplicating on rdata. Within an RRSet rdata values are unique.
func (s *RRTypeStore) AddRecord(rec Record) {
	t := rec.Type()
	rrset, ok := s.data.Get(t)
	if !ok {
		rrset = RRSet{Name: rec.Name, RRtype: t}
	}
	for i, existing := range rrset.Records {
		if dns.IsDuplicate(existing.RR, rec.RR) {
			rrset.Records[i] = rec
			s.data.Set(t, rrset)
			return
		}
	}
	rrset.Records = append(rrset.Records, rec)
	s.data.Set(t, rrset)
}

// DeleteRecord removes a single record matching rdata equality from its
// RRSet, pruning the RRSet entirely when it becomes empty.
func (s *RRTypeStore) DeleteRecord(rr dns.RR) error {
	t := rr.Header().Rrtype
	rrset, ok := s.data.Get(t)
	if !ok {
		return fmt.Errorf("no RRset of type %s present", dns.TypeToString[t])
	}
	out := rrset.Records[:0]
	found := false
	for _, existing := range rrset.Records {
		if dns.IsDuplicate(existing.RR, rr) {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		return fmt.Errorf("record not present in RRset of type %s", dns.TypeToString[t])
	}
	if len(out) == 0 {
		s.data.Remove(t)
		return nil
	}
	rrset.Records = out
	s.data.Set(t, rrset)
	return nil
}
