package zone

import (
	"github.com/miekg/dns"
	"github.com/twotwotwo/sorts/sortutil"
)

// NSEC3Params configures the zone's NSEC3 chain per RFC 5155.
type NSEC3Params struct {
	Algorithm  uint8 // 1 = SHA-1
	Flags      uint8
	Iterations uint16
	Salt       string
}

// hashedOwnerNames returns sha1(params)-hashed owner labels (upper-case
// base32hex, RFC 5155 §5) for every owner name in the zone, sorted in
// hash order, alongside a lookup from hash back to the plain owner node.
func (z *ApexZone) hashedOwnerNames(p NSEC3Params) ([]string, map[string]*Node) {
	names := z.sortedOwnerNames()
	hashes := make([]string, 0, len(names))
	byHash := make(map[string]*Node, len(names))
	for _, n := range names {
		h := dns.HashName(n, p.Algorithm, p.Iterations, p.Salt)
		hashes = append(hashes, h)
		node, _ := z.Tree.GetNode(NewName(n))
		byHash[h] = node
	}
	sortutil.Strings(hashes)
	return hashes, byHash
}

func (z *ApexZone) buildNSEC3(p NSEC3Params, hash string, hashes []string, byHash map[string]*Node) dns.RR {
	idx := -1
	for i, h := range hashes {
		if h == hash {
			idx = i
			break
		}
	}
	next := hash
	if idx != -1 {
		next = hashes[(idx+1)%len(hashes)]
	}
	ttl := uint32(3600)
	if soa, ok := z.SOARecord(); ok {
		ttl = soa.Minttl
	}
	owner := byHash[hash]
	var bitmap []uint16
	if owner != nil {
		bitmap = typeBitMapFor(owner)
	} else {
		bitmap = []uint16{TypeNSEC3, TypeRRSIG}
	}
	return &dns.NSEC3{
		Hdr: dns.RR_Header{
			Name:   hash + "." + z.Name.display,
			Rrtype: TypeNSEC3,
			Class:  dns.ClassINET,
			Ttl:    ttl,
		},
		Hash:       p.Algorithm,
		Flags:      p.Flags,
		Iterations: p.Iterations,
		SaltLength: uint8(len(p.Salt) / 2),
		Salt:       p.Salt,
		HashLength: uint8(len(next)),
		NextDomain: next,
		TypeBitMap: bitmap,
	}
}

func (z *ApexZone) nsec3CoveringOrMatch(p NSEC3Params, hashes []string, byHash map[string]*Node, targetHash string) dns.RR {
	predecessor := hashes[len(hashes)-1]
	for _, h := range hashes {
		if h == targetHash {
			return z.buildNSEC3(p, h, hashes, byHash)
		}
		if h < targetHash {
			predecessor = h
		} else {
			break
		}
	}
	return z.buildNSEC3(p, predecessor, hashes, byHash)
}

// FindNSec3ProofOfNonExistenceNxDomain returns two NSEC3 records for an
// NXDOMAIN response: the one matching or covering qname's hash, and the
// one matching or covering the hash of "*." + qname's parent. It does not
// search for the closest encloser, so no closest-encloser matching record
// is included and the next-closer name is always qname itself.
func (z *ApexZone) FindNSec3ProofOfNonExistenceNxDomain(p NSEC3Params, qname Name) []dns.RR {
	hashes, byHash := z.hashedOwnerNames(p)
	if len(hashes) == 0 {
		return nil
	}
	var out []dns.RR
	target := dns.HashName(qname.key, p.Algorithm, p.Iterations, p.Salt)
	out = append(out, z.nsec3CoveringOrMatch(p, hashes, byHash, target))

	wildcard := qname.WildcardOver()
	wtarget := dns.HashName(wildcard.key, p.Algorithm, p.Iterations, p.Salt)
	out = append(out, z.nsec3CoveringOrMatch(p, hashes, byHash, wtarget))
	return out
}

// FindNSec3ProofOfNonExistenceNoData returns the NSEC3 matching qname
// exactly, proving the queried type is absent from its bitmap.
func (z *ApexZone) FindNSec3ProofOfNonExistenceNoData(p NSEC3Params, qname Name) []dns.RR {
	hashes, byHash := z.hashedOwnerNames(p)
	if len(hashes) == 0 {
		return nil
	}
	target := dns.HashName(qname.key, p.Algorithm, p.Iterations, p.Salt)
	return []dns.RR{z.nsec3CoveringOrMatch(p, hashes, byHash, target)}
}

// FindNSec3ProofOfNonExistenceWildcard returns the next-closer NSEC3
// proving the exact query name is absent, to accompany a
// wildcard-synthesized answer.
func (z *ApexZone) FindNSec3ProofOfNonExistenceWildcard(p NSEC3Params, qname Name) []dns.RR {
	return z.FindNSec3ProofOfNonExistenceNoData(p, qname)
}
