package zone

import "github.com/miekg/dns"

// assembleAdditional fills the additional section for record types whose
// rdata names a target that is usefully resolved in-line (NS, MX, SRV,
// SVCB/HTTPS). Lookups stay within reg's shared tree; a target outside
// any loaded zone is simply omitted.
func assembleAdditional(reg *Registry, apex *ApexZone, qtype RecordType, rrset RRSet, dnssecOk bool) []dns.RR {
	var targets []string
	switch qtype {
	case TypeNS:
		for _, rec := range rrset.Records {
			ns, ok := rec.RR.(*dns.NS)
			if !ok {
				continue
			}
			if rec.Tag.NS != nil && (len(rec.Tag.NS.GlueA) > 0 || len(rec.Tag.NS.GlueAAAA) > 0) {
				return glueFromTags(rrset)
			}
			targets = append(targets, ns.Ns)
		}
	case TypeMX:
		for _, rec := range rrset.Records {
			if mx, ok := rec.RR.(*dns.MX); ok {
				targets = append(targets, mx.Mx)
			}
		}
	case TypeSRV:
		for _, rec := range rrset.Records {
			if srv, ok := rec.RR.(*dns.SRV); ok {
				targets = append(targets, srv.Target)
			}
		}
	case TypeSVCB, TypeHTTPS:
		for _, rec := range rrset.Records {
			switch rr := rec.RR.(type) {
			case *dns.SVCB:
				if rr.Target != "." {
					targets = append(targets, rr.Target)
				}
			case *dns.HTTPS:
				if rr.Target != "." {
					targets = append(targets, rr.Target)
				}
			}
		}
	default:
		return nil
	}

	var out []dns.RR
	seen := map[string]bool{}
	for _, t := range targets {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, resolveGlue(reg, NewName(t))...)
	}
	return out
}

func glueFromTags(rrset RRSet) []dns.RR {
	var out []dns.RR
	for _, rec := range rrset.Records {
		if rec.Tag.NS == nil {
			continue
		}
		out = append(out, rec.Tag.NS.GlueA...)
		out = append(out, rec.Tag.NS.GlueAAAA...)
	}
	return out
}

func resolveGlue(reg *Registry, target Name) []dns.RR {
	node, ok := reg.Tree.GetNode(target)
	if !ok {
		return nil
	}
	var out []dns.RR
	if a, ok := node.RRtypes.Get(TypeA); ok {
		out = append(out, a.RRs()...)
	}
	if aaaa, ok := node.RRtypes.Get(TypeAAAA); ok {
		out = append(out, aaaa.RRs()...)
	}
	return out
}
