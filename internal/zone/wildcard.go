package zone

import "github.com/miekg/dns"

// WildcardRewriteOwner rewrites the owner name of each RR in rrs from the
// matched wildcard name to the original query name, per RFC 4592.
func WildcardRewriteOwner(rrs []dns.RR, origQname string) []dns.RR {
	out := make([]dns.RR, 0, len(rrs))
	for _, rr := range rrs {
		rewritten := dns.Copy(rr)
		rewritten.Header().Name = origQname
		out = append(out, rewritten)
	}
	return out
}
