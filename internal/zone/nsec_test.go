package zone

import "testing"

func TestNSECChainCoversMissingName(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	apex.UpdateDnssecStatus(SignedWithNSEC)

	for _, owner := range []string{"a.example.com.", "m.example.com.", "z.example.com."} {
		n := NewName(owner)
		a := mustRR(t, owner+" 300 IN A 192.0.2.1")
		if err := apex.AddRecord(Record{Name: n, RR: a}); err != nil {
			t.Fatalf("AddRecord %s: %v", owner, err)
		}
	}

	proof := apex.FindNSecProofOfNonExistenceNxDomain(NewName("n.example.com."))
	if len(proof) == 0 {
		t.Fatalf("expected at least one covering NSEC record")
	}
}

func TestNSEC3ChainHashesOwners(t *testing.T) {
	reg := NewRegistry()
	apex := newTestPrimary(t, reg, "example.com.")
	if err := apex.ConvertToNSEC3(NSEC3Params{Iterations: 1, Salt: ""}); err != nil {
		t.Fatalf("ConvertToNSEC3: %v", err)
	}
	a := mustRR(t, "a.example.com. 300 IN A 192.0.2.1")
	if err := apex.AddRecord(Record{Name: NewName("a.example.com."), RR: a}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	proof := apex.FindNSec3ProofOfNonExistenceNxDomain(apex.nsec3Params(), NewName("b.example.com."))
	if len(proof) == 0 {
		t.Fatalf("expected NSEC3 covering records")
	}
}

func TestConvertDnssecRejectsNonPrimary(t *testing.T) {
	reg := NewRegistry()
	apex := NewApexZone(reg.Tree, NewName("sec.example.com."), Secondary)
	if err := apex.ConvertToNSEC3(NSEC3Params{}); err == nil {
		t.Fatalf("expected ConvertToNSEC3 to reject a non-primary zone")
	}
}
