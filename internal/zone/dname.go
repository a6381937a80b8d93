package zone

import (
	"strings"

	"github.com/miekg/dns"
)

// FindDNAME looks for a DNAME RRset at the closest encloser of qname,
// walking toward the apex. It returns the owning node and RRset, or
// ok=false if no DNAME applies.
func (z *ApexZone) FindDNAME(qname Name) (owner *Node, rrset RRSet, ok bool) {
	labels := qname.Labels()
	for i := len(labels) - 1; i >= 0; i-- {
		candidate := buildName(labels[:i])
		node, exists := z.Tree.GetNode(candidate)
		if !exists {
			continue
		}
		if rs, has := node.RRtypes.Get(TypeDNAME); has && len(rs.Records) > 0 {
			return node, rs, true
		}
		if node == z.node {
			break
		}
	}
	return nil, RRSet{}, false
}

// SubstituteDNAME synthesizes the CNAME implied by a DNAME substitution
// at owner for qname, per RFC 6672: the DNAME owner suffix of qname is
// replaced with the DNAME's target, and a CNAME record is synthesized
// mapping qname -> the substituted name; the caller continues CNAME
// chasing from there.
func SubstituteDNAME(owner Name, target string, qname Name) (*dns.CNAME, error) {
	prefix := strings.TrimSuffix(qname.key, owner.key)
	substituted := dns.Fqdn(prefix + target)
	return &dns.CNAME{
		Hdr: dns.RR_Header{
			Name:   qname.display,
			Rrtype: TypeCNAME,
			Class:  dns.ClassINET,
			Ttl:    0,
		},
		Target: substituted,
	}, nil
}
