package zone

import (
	"testing"

	"github.com/miekg/dns"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("dns.NewRR(%q): %v", s, err)
	}
	return rr
}

// newTestPrimary builds a Primary apex with an initial SOA set directly on
// the node, the way zone creation (not an ordinary mutation) bootstraps a
// fresh zone before any AddRecord/SetRecords call can run through mutate.
func newTestPrimary(t *testing.T, reg *Registry, name string) *ApexZone {
	t.Helper()
	apex := NewApexZone(reg.Tree, NewName(name), Primary)
	reg.Put(apex)
	soa := mustRR(t, name+" 3600 IN SOA ns1."+name+" hostmaster."+name+" 1 3600 600 604800 3600")
	apex.Node().RRtypes.AddRecord(Record{Name: apex.Name, RR: soa})
	return apex
}

func TestQueryExactAnswer(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	www := NewName("www.example.com.")
	a := mustRR(t, "www.example.com. 300 IN A 192.0.2.1")
	if err := apex.AddRecord(Record{Name: www, RR: a}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	resp := Query(reg, Request{Qname: www, Qtype: TypeA})
	if resp.Disposition != DispAnswer {
		t.Fatalf("expected DispAnswer, got %v", resp.Disposition)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("expected 1 answer record, got %d", len(resp.Answer))
	}
}

func TestQueryNXDomain(t *testing.T) {
	reg := NewRegistry()
	newTestPrimary(t, reg, "example.com.")

	resp := Query(reg, Request{Qname: NewName("nope.example.com."), Qtype: TypeA})
	if resp.Disposition != DispNXDomain {
		t.Fatalf("expected DispNXDomain, got %v", resp.Disposition)
	}
	if len(resp.Authority) == 0 {
		t.Fatalf("expected SOA in authority section")
	}
}

func TestQueryNoData(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	www := NewName("www.example.com.")
	a := mustRR(t, "www.example.com. 300 IN A 192.0.2.1")
	if err := apex.AddRecord(Record{Name: www, RR: a}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	resp := Query(reg, Request{Qname: www, Qtype: TypeAAAA})
	if resp.Disposition != DispNoData {
		t.Fatalf("expected DispNoData, got %v", resp.Disposition)
	}
}

func TestQueryDelegationReferral(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	cut := NewName("sub.example.com.")
	ns := mustRR(t, "sub.example.com. 3600 IN NS ns1.sub.example.com.")
	if err := apex.AddRecord(Record{Name: cut, RR: ns}); err != nil {
		t.Fatalf("AddRecord NS: %v", err)
	}

	resp := Query(reg, Request{Qname: NewName("www.sub.example.com."), Qtype: TypeA})
	if resp.Disposition != DispReferral {
		t.Fatalf("expected DispReferral, got %v", resp.Disposition)
	}
	if len(resp.Authority) != 1 {
		t.Fatalf("expected 1 NS record in authority, got %d", len(resp.Authority))
	}
}

func TestQueryWildcardSynthesis(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	wc := NewName("*.example.com.")
	a := mustRR(t, "*.example.com. 300 IN A 192.0.2.9")
	if err := apex.AddRecord(Record{Name: wc, RR: a}); err != nil {
		t.Fatalf("AddRecord wildcard: %v", err)
	}

	resp := Query(reg, Request{Qname: NewName("anything.example.com."), Qtype: TypeA})
	if resp.Disposition != DispAnswer {
		t.Fatalf("expected DispAnswer via wildcard, got %v", resp.Disposition)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("expected 1 synthesized answer, got %d", len(resp.Answer))
	}
	if resp.Answer[0].Header().Name != "anything.example.com." {
		t.Fatalf("expected owner rewritten to query name, got %s", resp.Answer[0].Header().Name)
	}
}

func TestQueryCNAMEChase(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	alias := NewName("alias.example.com.")
	target := NewName("target.example.com.")
	cname := mustRR(t, "alias.example.com. 300 IN CNAME target.example.com.")
	a := mustRR(t, "target.example.com. 300 IN A 192.0.2.2")
	if err := apex.AddRecord(Record{Name: alias, RR: cname}); err != nil {
		t.Fatalf("AddRecord CNAME: %v", err)
	}
	if err := apex.AddRecord(Record{Name: target, RR: a}); err != nil {
		t.Fatalf("AddRecord A: %v", err)
	}

	resp := Query(reg, Request{Qname: alias, Qtype: TypeA})
	if resp.Disposition != DispAnswer {
		t.Fatalf("expected DispAnswer, got %v", resp.Disposition)
	}
	if len(resp.Answer) != 2 {
		t.Fatalf("expected CNAME + A in answer, got %d records", len(resp.Answer))
	}
}

func TestQueryGlueNodeBelowDelegationReturnsReferral(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	ns := mustRR(t, "sub.example.com. 3600 IN NS ns1.sub.example.com.")
	if err := apex.AddRecord(Record{Name: NewName("sub.example.com."), RR: ns}); err != nil {
		t.Fatalf("AddRecord NS: %v", err)
	}
	glue := mustRR(t, "ns1.sub.example.com. 3600 IN A 198.51.100.1")
	if err := apex.AddRecord(Record{Name: NewName("ns1.sub.example.com."), RR: glue}); err != nil {
		t.Fatalf("AddRecord glue: %v", err)
	}

	// The glue node exists in the tree, but it sits below the cut: the
	// response must be a referral, never an authoritative answer.
	resp := Query(reg, Request{Qname: NewName("ns1.sub.example.com."), Qtype: TypeA})
	if resp.Disposition != DispReferral {
		t.Fatalf("expected DispReferral for a glue name below the cut, got %v", resp.Disposition)
	}
	if resp.Authoritative {
		t.Fatalf("a referral must not be authoritative")
	}
	if len(resp.Additional) != 1 || resp.Additional[0].String() != glue.String() {
		t.Fatalf("expected the glue A in additional, got %+v", resp.Additional)
	}
}

type fakeSigner struct{ signed int }

func (f *fakeSigner) SignRRset(zoneName string, rrset RRSet) ([]dns.RR, error) {
	f.signed++
	sig := &dns.RRSIG{
		Hdr:         dns.RR_Header{Name: rrset.Name.String(), Rrtype: TypeRRSIG, Class: dns.ClassINET, Ttl: 300},
		TypeCovered: rrset.RRtype,
		SignerName:  zoneName,
	}
	return []dns.RR{sig}, nil
}

func (f *fakeSigner) KeyTags(zoneName string) []uint16 { return []uint16{12345} }

func TestQueryNXDomainProofIsSigned(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	apex.UpdateDnssecStatus(SignedWithNSEC)
	apex.Signer = &fakeSigner{}

	a := mustRR(t, "www.example.com. 300 IN A 192.0.2.1")
	if err := apex.AddRecord(Record{Name: NewName("www.example.com."), RR: a}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	resp := Query(reg, Request{Qname: NewName("nope.example.com."), Qtype: TypeA, DO: true})
	if resp.Disposition != DispNXDomain {
		t.Fatalf("expected DispNXDomain, got %v", resp.Disposition)
	}
	var nsecs, sigsOverNSEC int
	for _, rr := range resp.Authority {
		switch v := rr.(type) {
		case *dns.NSEC:
			nsecs++
		case *dns.RRSIG:
			if v.TypeCovered == TypeNSEC {
				sigsOverNSEC++
			}
		}
	}
	if nsecs == 0 {
		t.Fatalf("expected NSEC proof records in authority, got %+v", resp.Authority)
	}
	if sigsOverNSEC != nsecs {
		t.Fatalf("expected every proof NSEC to carry an RRSIG, got %d NSEC / %d RRSIG", nsecs, sigsOverNSEC)
	}
}

func TestQueryStubAlwaysReferral(t *testing.T) {
	reg := NewRegistry()
	apex := NewApexZone(reg.Tree, NewName("stub.example.com."), Stub)
	reg.Put(apex)
	ns := mustRR(t, "stub.example.com. 3600 IN NS ns1.stub.example.com.")
	apex.Node().RRtypes.AddRecord(Record{Name: apex.Name, RR: ns})

	resp := Query(reg, Request{Qname: NewName("www.stub.example.com."), Qtype: TypeA})
	if resp.Disposition != DispReferral {
		t.Fatalf("expected DispReferral for stub zone, got %v", resp.Disposition)
	}
}
