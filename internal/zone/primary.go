package zone

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// bumpSerial advances the apex SOA serial using the configured scheme
// (monotonic increment, or the date-encoded YYYYMMDDnn form) and returns
// the old and new serial.
func (z *ApexZone) bumpSerial(now time.Time) (old, new uint32, err error) {
	soa, ok := z.SOARecord()
	if !ok {
		return 0, 0, newErr(KindInvalidRecord, z.Name.String(), "zone has no SOA to bump")
	}
	old = soa.Serial
	switch z.SerialScheme {
	case SerialDateEncoded:
		datePart := uint32(now.Year())*1000000 + uint32(now.Month())*10000 + uint32(now.Day())*100
		if old >= datePart && old < datePart+100 {
			new = old + 1
		} else {
			new = datePart
		}
	default: // SerialMonotonic
		new = old + 1
	}
	soa.Serial = new
	rrset := z.node.RRtypes.GetOnly(TypeSOA)
	rrset.Records[0].RR = soa
	z.node.RRtypes.Set(TypeSOA, rrset)
	return old, new, nil
}

// mutate is the single choke point for every Primary write: it applies
// fn against the zone, bumps the serial, and, if the zone carries a
// journal, appends the resulting diff sequence. The journal stays
// monotone by SOA serial because every write passes through here.
func (z *ApexZone) mutate(fn func() (deleted, added []dns.RR, err error)) error {
	if z.Type != Primary {
		return newErr(KindOperationNotSupported, z.Name.String(), "zone type %s does not support direct mutation", z.Type)
	}
	z.mu.Lock()
	defer z.mu.Unlock()

	oldSOA, ok := z.SOARecord()
	if !ok {
		return newErr(KindInvalidRecord, z.Name.String(), "zone has no SOA")
	}
	oldSOACopy := dns.Copy(oldSOA).(*dns.SOA)

	deleted, added, err := fn()
	if err != nil {
		return err
	}

	_, _, err = z.bumpSerial(time.Now())
	if err != nil {
		return err
	}
	newSOA, _ := z.SOARecord()

	if z.Journal != nil {
		z.Journal.Append(oldSOACopy, deleted, newSOA, added)
	}
	z.LastModified = time.Now()
	return nil
}

// SetRecords replaces the entire RRSet at name for rrtype.
func (z *ApexZone) SetRecords(name Name, rrtype RecordType, records []Record) error {
	if name.Equal(z.Name) && rrtype == TypeSOA && z.Type != Primary {
		return newErr(KindOperationNotSupported, z.Name.String(), "only a Primary zone may set its own SOA")
	}
	return z.mutate(func() ([]dns.RR, []dns.RR, error) {
		node := z.Tree.GetOrAddSubDomainZone(name, nil)
		old, _ := node.RRtypes.Get(rrtype)
		var deleted []dns.RR
		for _, r := range old.Records {
			deleted = append(deleted, r.RR)
		}
		var added []dns.RR
		for _, r := range records {
			added = append(added, r.RR)
		}
		if len(records) == 0 {
			node.RRtypes.Delete(rrtype)
		} else {
			node.RRtypes.Set(rrtype, RRSet{Name: name, RRtype: rrtype, Records: records})
		}
		return deleted, added, nil
	})
}

// AddRecord appends a single record to its RRSet.
func (z *ApexZone) AddRecord(rec Record) error {
	if rec.Type() == TypeSOA && !rec.Name.Equal(z.Name) {
		return newErr(KindInvalidRecord, z.Name.String(), "SOA may only exist at the zone apex")
	}
	return z.mutate(func() ([]dns.RR, []dns.RR, error) {
		node := z.Tree.GetOrAddSubDomainZone(rec.Name, nil)
		node.RRtypes.AddRecord(rec)
		return nil, []dns.RR{rec.RR}, nil
	})
}

// UpdateRecord replaces a single existing record (matched by owner+type+
// rdata equality on old) with updated.
func (z *ApexZone) UpdateRecord(name Name, old, updated dns.RR) error {
	return z.mutate(func() ([]dns.RR, []dns.RR, error) {
		node, ok := z.Tree.GetNode(name)
		if !ok {
			return nil, nil, newErr(KindNameOutsideZone, z.Name.String(), "no such owner %s", name)
		}
		if err := node.RRtypes.DeleteRecord(old); err != nil {
			return nil, nil, wrapErr(KindInvalidRecord, z.Name.String(), err, "updating record at %s", name)
		}
		node.RRtypes.AddRecord(Record{Name: name, RR: updated})
		return []dns.RR{old}, []dns.RR{updated}, nil
	})
}

// DeleteRecord removes a single record; when the owning node becomes
// empty and is not an apex, it is garbage collected.
func (z *ApexZone) DeleteRecord(name Name, rr dns.RR) error {
	return z.mutate(func() ([]dns.RR, []dns.RR, error) {
		node, ok := z.Tree.GetNode(name)
		if !ok {
			return nil, nil, newErr(KindNameOutsideZone, z.Name.String(), "no such owner %s", name)
		}
		if err := node.RRtypes.DeleteRecord(rr); err != nil {
			return nil, nil, wrapErr(KindInvalidRecord, z.Name.String(), err, "deleting record at %s", name)
		}
		if node.RRtypes.IsEmpty() && !node.IsApex() {
			z.Tree.TryRemove(name)
		}
		return []dns.RR{rr}, nil, nil
	})
}

// DeleteRecords removes every record at name for rrtype.
func (z *ApexZone) DeleteRecords(name Name, rrtype RecordType) error {
	return z.mutate(func() ([]dns.RR, []dns.RR, error) {
		node, ok := z.Tree.GetNode(name)
		if !ok {
			return nil, nil, newErr(KindNameOutsideZone, z.Name.String(), "no such owner %s", name)
		}
		rrset, ok := node.RRtypes.Get(rrtype)
		if !ok {
			return nil, nil, fmt.Errorf("no RRset of type %s at %s", dns.TypeToString[rrtype], name)
		}
		var deleted []dns.RR
		for _, r := range rrset.Records {
			deleted = append(deleted, r.RR)
		}
		node.RRtypes.Delete(rrtype)
		if node.RRtypes.IsEmpty() && !node.IsApex() {
			z.Tree.TryRemove(name)
		}
		return deleted, nil, nil
	})
}
