package zone

import "github.com/miekg/dns"

// Referral builds the referral response for a Stub zone. A Stub holds
// only NS and glue and never answers authoritatively, regardless of
// qtype.
func (z *ApexZone) Referral() (ns []dns.RR, glueA, glueAAAA []dns.RR) {
	rrset, ok := z.node.RRtypes.Get(TypeNS)
	if !ok {
		return nil, nil, nil
	}
	for _, rec := range rrset.Records {
		ns = append(ns, rec.RR)
		if rec.Tag.NS != nil {
			glueA = append(glueA, rec.Tag.NS.GlueA...)
			glueAAAA = append(glueAAAA, rec.Tag.NS.GlueAAAA...)
		}
	}
	return ns, glueA, glueAAAA
}
