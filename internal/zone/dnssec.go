package zone

import (
	"fmt"

	"github.com/miekg/dns"
)

// ConvertToNSEC switches the zone's signing status to NSEC. No chain is
// stored: it is computed lazily per-query by sortedOwnerNames/buildNSEC,
// so conversion only updates bookkeeping and clears any NSEC3 state.
func (z *ApexZone) ConvertToNSEC() error {
	if z.Type != Primary {
		return newErr(KindConversionRejected, z.Name.String(), "only a primary zone can change its signing scheme")
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.NSEC3 = NSEC3Params{}
	z.Dnssec = SignedWithNSEC
	return nil
}

// ConvertToNSEC3 switches the zone to NSEC3 with the given parameters.
func (z *ApexZone) ConvertToNSEC3(p NSEC3Params) error {
	if z.Type != Primary {
		return newErr(KindConversionRejected, z.Name.String(), "only a primary zone can change its signing scheme")
	}
	if p.Algorithm == 0 {
		p.Algorithm = 1
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.NSEC3 = p
	z.Dnssec = SignedWithNSEC3
	return nil
}

// Unsign removes DNSSEC signing from the zone. RRSIG/NSEC/NSEC3/DNSKEY
// records already published are left in the tree; later edits do not
// remove them (Manager.UnsignZone strips them after calling Unsign).
// Unsign only flips the status so the
// query engine stops asking the Signer and stops emitting NSEC(3) proofs.
func (z *ApexZone) Unsign() error {
	if z.Type != Primary {
		return newErr(KindConversionRejected, z.Name.String(), "only a primary zone can be unsigned")
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.Dnssec = Unsigned
	z.NSEC3 = NSEC3Params{}
	return nil
}

// ExportDS builds the DS RRset a parent zone should publish for this
// zone's current KSK set. It asks the Signer for the zone's active key
// tags and reads the corresponding DNSKEY rdata already published at the
// apex to compute digests. Digest algorithm 2 (SHA-256) is used
// throughout.
func (z *ApexZone) ExportDS() ([]dns.RR, error) {
	if z.Signer == nil {
		return nil, newErr(KindOperationNotSupported, z.Name.String(), "zone has no configured signer")
	}
	rrset, ok := z.GetRecords(z.Name, TypeDNSKEY)
	if !ok || rrset.Empty() {
		return nil, newErr(KindOperationNotSupported, z.Name.String(), "no DNSKEY records published")
	}
	tags := map[uint16]bool{}
	for _, kt := range z.Signer.KeyTags(z.Name.String()) {
		tags[kt] = true
	}
	var out []dns.RR
	for _, rec := range rrset.Records {
		dnskey, ok := rec.RR.(*dns.DNSKEY)
		if !ok {
			continue
		}
		if dnskey.Flags&dns.SEP == 0 {
			continue // only key-signing keys get a DS
		}
		if len(tags) > 0 && !tags[dnskey.KeyTag()] {
			continue
		}
		ds := dnskey.ToDS(dns.SHA256)
		if ds == nil {
			return nil, fmt.Errorf("failed to compute DS for key tag %d", dnskey.KeyTag())
		}
		out = append(out, ds)
	}
	return out, nil
}

// TrustAnchor returns the zone's DNSKEY RRset, suitable for seeding a
// validator's trust anchor store when this zone is configured as one.
func (z *ApexZone) TrustAnchor() ([]dns.RR, bool) {
	rrset, ok := z.GetRecords(z.Name, TypeDNSKEY)
	if !ok || rrset.Empty() {
		return nil, false
	}
	return rrset.RRs(), true
}
