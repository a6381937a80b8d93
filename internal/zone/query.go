package zone

import (
	"github.com/miekg/dns"
)

// Request is the question the query engine answers, deliberately thin so
// it doesn't require importing a wire-framing dependency. The listener
// layer is responsible for turning a dns.Msg into one of these and the
// Response back into a dns.Msg.
type Request struct {
	Qname Name
	Qtype RecordType
	DO    bool // client requested DNSSEC records (EDNS0 DO bit)
}

// Disposition classifies how a Query call was resolved, letting the
// caller (listener) decide flag bits (AA, RA) and whether to fall
// through to a recursive resolver.
type Disposition uint8

const (
	DispNoAuthority Disposition = iota // no apex found / apex disabled: upstream may answer
	DispAnswer
	DispReferral
	DispNXDomain
	DispNoData
	DispForward // Forwarder zone: caller should forward per FWD targets
)

// Response is the result of a Query call.
type Response struct {
	Disposition   Disposition
	Authoritative bool
	Answer        []dns.RR
	Authority     []dns.RR
	Additional    []dns.RR
	Forward       []FWDTarget // set only when Disposition == DispForward
}

// Query resolves req against reg: delegation referral, wildcard
// synthesis, DNAME/CNAME chasing, forwarder fall-through, or
// NXDOMAIN/NODATA with proofs. Recursion is the caller's concern; this
// engine only ever does bounded work.
func Query(reg *Registry, req Request) Response {
	res := reg.Tree.FindZone(req.Qname)
	if res.Apex == nil || res.Apex.Disabled {
		return Response{Disposition: DispNoAuthority}
	}
	apex := res.Apex
	dnssecOk := req.DO && apex.IsSigned()

	if res.Matched == nil {
		return queryAbsent(reg, apex, res, req, dnssecOk)
	}
	return queryPresent(reg, apex, res, req, dnssecOk)
}

func queryAbsent(reg *Registry, apex *ApexZone, res FindResult, req Request, dnssecOk bool) Response {
	// 1. Active delegation below the apex.
	if res.Delegation != nil {
		return referralResponse(reg, res.Delegation, apex, dnssecOk, req)
	}

	// 2. Stub zones always answer with a referral from the apex.
	if apex.Type == Stub {
		ns, a, aaaa := apex.Referral()
		if len(ns) > 0 {
			resp := Response{Disposition: DispReferral, Authority: ns, Additional: append(a, aaaa...)}
			return resp
		}
	}

	// 3. Wildcard synthesis (closer encloser has a "*" sibling).
	if res.Wildcard != nil {
		return queryWildcard(apex, res.Wildcard, req, dnssecOk)
	}

	// 4. DNAME substitution at the closest encloser, then the apex.
	if owner, rrset, ok := apex.FindDNAME(req.Qname); ok {
		target := rrset.Records[0].RR.(*dns.DNAME).Target
		cname, _ := SubstituteDNAME(owner.name, target, req.Qname)
		answer := []dns.RR{rrset.Records[0].RR, cname}
		chased, _ := chaseCNAME(reg, NewName(cname.Target), req.Qtype, dnssecOk, map[string]bool{req.Qname.Key(): true})
		answer = append(answer, chased...)
		return Response{Disposition: DispAnswer, Authoritative: true, Answer: answer}
	}

	// 5. Forwarder fall-through.
	if apex.Type == Forwarder {
		if targets, ok := apex.FindForwarder(req.Qname); ok {
			return Response{Disposition: DispForward, Forward: targets}
		}
	}

	// 6. NXDOMAIN / NODATA.
	disp := DispNXDomain
	if res.HasSubDomains {
		disp = DispNoData
	}
	soaRRset, _ := apex.QueryRecords(apex.Name, TypeSOA, dnssecOk)
	authority := soaRRset.RRs()
	authority = append(authority, soaRRset.RRSIGs...)
	if dnssecOk {
		authority = append(authority, dnssecProofAbsent(apex, req.Qname, disp)...)
	}
	return Response{Disposition: disp, Authoritative: true, Authority: authority}
}

func queryWildcard(apex *ApexZone, wildcardNode *Node, req Request, dnssecOk bool) Response {
	rrset, ok := wildcardNode.RRtypes.Get(req.Qtype)
	if !ok || len(rrset.Records) == 0 {
		disp := DispNoData
		soaRRset, _ := apex.QueryRecords(apex.Name, TypeSOA, dnssecOk)
		authority := soaRRset.RRs()
		if dnssecOk {
			authority = append(authority, dnssecProofAbsent(apex, req.Qname, DispNoData)...)
		}
		return Response{Disposition: disp, Authoritative: true, Authority: authority}
	}
	if dnssecOk && apex.Signer != nil && len(rrset.RRSIGs) == 0 {
		if sigs, err := apex.Signer.SignRRset(apex.Name.String(), rrset); err == nil {
			rrset.RRSIGs = sigs
		}
	}
	answer := WildcardRewriteOwner(rrset.RRs(), req.Qname.String())
	authority := []dns.RR{}
	if dnssecOk {
		authority = append(authority, dnssecProofWildcard(apex, req.Qname)...)
		answer = append(answer, WildcardRewriteOwner(rrset.RRSIGs, req.Qname.String())...)
	}
	return Response{Disposition: DispAnswer, Authoritative: true, Answer: answer, Authority: authority}
}

func queryPresent(reg *Registry, apex *ApexZone, res FindResult, req Request, dnssecOk bool) Response {
	node := res.Matched

	// DS queries at an apex are answered from the shared tree node's own
	// DS RRset, which holds the parent-published DS regardless of which
	// apex owns the node. The parent-side shift needs no second lookup.
	if req.Qtype == TypeDS && node.IsApex() {
		rrset, ok := node.RRtypes.Get(TypeDS)
		if !ok || len(rrset.Records) == 0 {
			return Response{Disposition: DispNoData, Authoritative: true}
		}
		return Response{Disposition: DispAnswer, Authoritative: true, Answer: rrset.RRs()}
	}

	// A node at or below an active delegation cut is not this server's
	// data to answer: glue nodes below the cut exist in the tree but must
	// come back as a referral, and the cut's own NS/DS are referral-side
	// too (referralResponse answers DS from the parent).
	if res.Delegation != nil {
		return referralResponse(reg, res.Delegation, apex, dnssecOk, req)
	}

	// Stub zones answer existing names with a referral from the apex too.
	if apex.Type == Stub {
		if ns, a, aaaa := apex.Referral(); len(ns) > 0 {
			return Response{Disposition: DispReferral, Authority: ns, Additional: append(a, aaaa...)}
		}
	}

	rrset, ok := node.RRtypes.Get(req.Qtype)
	if ok && len(rrset.Records) > 0 {
		return buildAnswer(reg, apex, node, rrset, req, dnssecOk)
	}

	// CNAME chase: if the only thing at this node is a CNAME and the
	// query type differs, chase it.
	if cnameSet, hasCname := node.RRtypes.Get(TypeCNAME); hasCname && len(cnameSet.Records) > 0 && req.Qtype != TypeCNAME {
		answer := cnameSet.RRs()
		chased, _ := chaseCNAME(reg, NewName(cnameSet.Records[0].RR.(*dns.CNAME).Target), req.Qtype, dnssecOk, map[string]bool{req.Qname.Key(): true})
		answer = append(answer, chased...)
		return Response{Disposition: DispAnswer, Authoritative: true, Answer: answer}
	}

	disp := DispNoData
	soaRRset, _ := apex.QueryRecords(apex.Name, TypeSOA, dnssecOk)
	authority := soaRRset.RRs()
	if dnssecOk {
		authority = append(authority, dnssecProofAbsent(apex, req.Qname, disp)...)
	}
	if apex.Type == Forwarder && !apex.ContainsNameServerRecords() {
		if targets, ok := apex.FindForwarder(req.Qname); ok {
			return Response{Disposition: DispForward, Forward: targets}
		}
	}
	return Response{Disposition: disp, Authoritative: true, Authority: authority}
}

func buildAnswer(reg *Registry, apex *ApexZone, node *Node, rrset RRSet, req Request, dnssecOk bool) Response {
	if dnssecOk && apex.Signer != nil && len(rrset.RRSIGs) == 0 {
		if sigs, err := apex.Signer.SignRRset(apex.Name.String(), rrset); err == nil {
			rrset.RRSIGs = sigs
		}
	}
	answer := rrset.RRs()
	if dnssecOk {
		answer = append(answer, rrset.RRSIGs...)
	}
	additional := assembleAdditional(reg, apex, req.Qtype, rrset, dnssecOk)
	return Response{Disposition: DispAnswer, Authoritative: true, Answer: answer, Additional: additional}
}

// chaseCNAME follows a CNAME chain up to MaxCNAMEHops, detecting loops
// by both owner-name and already-seen-rdata equality.
func chaseCNAME(reg *Registry, target Name, qtype RecordType, dnssecOk bool, seen map[string]bool) ([]dns.RR, bool) {
	var out []dns.RR
	cur := target
	for hop := 0; hop < MaxCNAMEHops; hop++ {
		if seen[cur.Key()] {
			return out, true // loop detected
		}
		seen[cur.Key()] = true

		apex := reg.FindApex(cur)
		if apex == nil {
			return out, false
		}
		node, ok := reg.Tree.GetNode(cur)
		if !ok {
			return out, false
		}
		if rrset, ok := node.RRtypes.Get(qtype); ok && len(rrset.Records) > 0 {
			if dnssecOk && apex.Signer != nil && len(rrset.RRSIGs) == 0 {
				if sigs, err := apex.Signer.SignRRset(apex.Name.String(), rrset); err == nil {
					rrset.RRSIGs = sigs
				}
			}
			out = append(out, rrset.RRs()...)
			if dnssecOk {
				out = append(out, rrset.RRSIGs...)
			}
			return out, false
		}
		cnameSet, ok := node.RRtypes.Get(TypeCNAME)
		if !ok || len(cnameSet.Records) == 0 {
			return out, false
		}
		cname := cnameSet.Records[0].RR.(*dns.CNAME)
		out = append(out, cname)
		cur = NewName(cname.Target)
	}
	return out, true // hop limit reached
}

func referralResponse(reg *Registry, delegation *Node, apex *ApexZone, dnssecOk bool, req Request) Response {
	nsSet, _ := delegation.RRtypes.Get(TypeNS)
	authority := nsSet.RRs()
	var additional []dns.RR
	for _, rec := range nsSet.Records {
		if rec.Tag.NS != nil && (len(rec.Tag.NS.GlueA) > 0 || len(rec.Tag.NS.GlueAAAA) > 0) {
			additional = append(additional, rec.Tag.NS.GlueA...)
			additional = append(additional, rec.Tag.NS.GlueAAAA...)
			continue
		}
		// No glue on the tag: fall back to resolving the NS target
		// in-tree, the same way answer-time additional assembly does.
		if ns, ok := rec.RR.(*dns.NS); ok {
			additional = append(additional, resolveGlue(reg, NewName(ns.Ns))...)
		}
	}
	if req.Qtype == TypeDS && req.Qname.Equal(delegation.name) {
		if dsSet, ok := delegation.RRtypes.Get(TypeDS); ok && len(dsSet.Records) > 0 {
			return Response{Disposition: DispAnswer, Authoritative: true, Answer: dsSet.RRs()}
		}
		if dnssecOk && apex != nil {
			authority = append(authority, dnssecProofAbsent(apex, delegation.name, DispNoData)...)
		}
	}
	return Response{Disposition: DispReferral, Authority: authority, Additional: additional}
}

func dnssecProofAbsent(apex *ApexZone, qname Name, disp Disposition) []dns.RR {
	var proof []dns.RR
	if apex.Dnssec == SignedWithNSEC3 {
		p := apex.nsec3Params()
		if disp == DispNXDomain {
			proof = apex.FindNSec3ProofOfNonExistenceNxDomain(p, qname)
		} else {
			proof = apex.FindNSec3ProofOfNonExistenceNoData(p, qname)
		}
	} else if disp == DispNXDomain {
		proof = apex.FindNSecProofOfNonExistenceNxDomain(qname)
	} else {
		proof = apex.FindNSecProofOfNonExistenceNoData(qname)
	}
	return signProof(apex, proof)
}

func dnssecProofWildcard(apex *ApexZone, qname Name) []dns.RR {
	var proof []dns.RR
	if apex.Dnssec == SignedWithNSEC3 {
		proof = apex.FindNSec3ProofOfNonExistenceWildcard(apex.nsec3Params(), qname)
	} else {
		proof = apex.FindNSecProofOfNonExistenceWildcard(qname)
	}
	return signProof(apex, proof)
}

// signProof interleaves each synthesized NSEC/NSEC3 proof record with
// its RRSIG: a proof without signatures is useless to a validator.
func signProof(apex *ApexZone, proof []dns.RR) []dns.RR {
	if apex.Signer == nil || len(proof) == 0 {
		return proof
	}
	out := make([]dns.RR, 0, len(proof)*2)
	for _, rr := range proof {
		out = append(out, rr)
		owner := NewName(rr.Header().Name)
		rrset := RRSet{
			Name:    owner,
			RRtype:  rr.Header().Rrtype,
			Records: []Record{{Name: owner, RR: rr}},
		}
		if sigs, err := apex.Signer.SignRRset(apex.Name.String(), rrset); err == nil {
			out = append(out, sigs...)
		}
	}
	return out
}

// QueryClosestDelegation is the thin variant used by a recursive-server
// shim: it returns a referral only when one actually exists.
func QueryClosestDelegation(reg *Registry, req Request) (Response, bool) {
	res := reg.Tree.FindZone(req.Qname)
	if res.Delegation == nil {
		return Response{}, false
	}
	return referralResponse(reg, res.Delegation, res.Apex, req.DO, req), true
}
