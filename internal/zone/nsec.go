package zone

import (
	"github.com/miekg/dns"
	"github.com/twotwotwo/sorts/sortutil"
)

// sortedOwnerNames returns every owner name in the zone in canonical
// (case-insensitive) DNS order, the backbone of an NSEC chain. Real
// zones can carry hundreds of thousands of owner names, so this uses a
// radix string sort rather than sort.Strings.
func (z *ApexZone) sortedOwnerNames() []string {
	var names []string
	collectOwnerKeys(z.node, &names)
	sortutil.Strings(names)
	return names
}

func collectOwnerKeys(n *Node, out *[]string) {
	if !n.RRtypes.IsEmpty() {
		*out = append(*out, n.name.key)
	}
	for _, label := range n.childNames() {
		if child, ok := n.children.Get(label); ok {
			collectOwnerKeys(child, out)
		}
	}
}

// typeBitMapFor lists the RR types present at owner, in the form NSEC/NSEC3
// records publish them.
func typeBitMapFor(owner *Node) []uint16 {
	types := append([]uint16{}, owner.RRtypes.Keys()...)
	types = append(types, TypeNSEC, TypeRRSIG)
	sortUint16(types)
	return dedupUint16(types)
}

func sortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func dedupUint16(s []uint16) []uint16 {
	out := s[:0]
	var last uint16
	first := true
	for _, v := range s {
		if first || v != last {
			out = append(out, v)
			last = v
			first = false
		}
	}
	return out
}

// FindNSecProofOfNonExistenceNxDomain returns the NSEC RRs for an
// NXDOMAIN response: the NSEC matching or covering qname, then the NSEC
// matching or covering the wildcard directly above it ("*." + qname's
// parent). Both are returned even when they are the same record.
func (z *ApexZone) FindNSecProofOfNonExistenceNxDomain(qname Name) []dns.RR {
	names := z.sortedOwnerNames()
	if len(names) == 0 {
		return nil
	}
	var out []dns.RR
	if rr := z.nsecCoveringOrMatch(names, qname.key); rr != nil {
		out = append(out, rr)
	}
	wildcard := qname.WildcardOver()
	if rr := z.nsecCoveringOrMatch(names, wildcard.key); rr != nil {
		out = append(out, rr)
	}
	return out
}

// FindNSecProofOfNonExistenceNoData returns the owner's own NSEC record,
// whose type bitmap proves the queried type is absent.
func (z *ApexZone) FindNSecProofOfNonExistenceNoData(qname Name) []dns.RR {
	owner, ok := z.Tree.GetNode(qname)
	if !ok {
		return nil
	}
	return []dns.RR{z.buildNSEC(owner, z.sortedOwnerNames())}
}

// FindNSecProofOfNonExistenceWildcard returns the NSEC proving the exact
// query name does not exist, to accompany a wildcard-synthesized answer.
func (z *ApexZone) FindNSecProofOfNonExistenceWildcard(qname Name) []dns.RR {
	names := z.sortedOwnerNames()
	if rr := z.nsecCoveringOrMatch(names, qname.key); rr != nil {
		return []dns.RR{rr}
	}
	return nil
}

// nsecCoveringOrMatch finds the NSEC record whose owner either equals
// target, or is its immediate predecessor in canonical order (the
// "covering" NSEC, per RFC 4034 §4.1). names is assumed pre-sorted by
// sortedOwnerNames.
func (z *ApexZone) nsecCoveringOrMatch(names []string, target string) dns.RR {
	predecessor := names[len(names)-1] // wrap: target sorts before everything
	for _, n := range names {
		if n == target {
			node, _ := z.Tree.GetNode(NewName(n))
			return z.buildNSEC(node, names)
		}
		if n < target {
			predecessor = n
		} else {
			break
		}
	}
	node, ok := z.Tree.GetNode(NewName(predecessor))
	if !ok {
		return nil
	}
	return z.buildNSEC(node, names)
}

func (z *ApexZone) buildNSEC(owner *Node, names []string) dns.RR {
	idx := -1
	for i, n := range names {
		if n == owner.name.key {
			idx = i
			break
		}
	}
	next := z.Name.key
	if idx != -1 {
		next = names[(idx+1)%len(names)]
	}
	ttl := uint32(3600)
	if soa, ok := z.SOARecord(); ok {
		ttl = soa.Minttl
	}
	return &dns.NSEC{
		Hdr: dns.RR_Header{
			Name:   owner.name.display,
			Rrtype: TypeNSEC,
			Class:  dns.ClassINET,
			Ttl:    ttl,
		},
		NextDomain: next,
		TypeBitMap: typeBitMapFor(owner),
	}
}
