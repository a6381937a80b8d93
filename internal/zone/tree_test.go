package zone

import "testing"

func TestFindZoneExactMatch(t *testing.T) {
	tree := NewTree()
	apex := NewApexZone(tree, NewName("example.com."), Primary)
	node := tree.GetOrAddSubDomainZone(NewName("www.example.com."), nil)
	node.RRtypes.Set(TypeA, RRSet{Name: node.name, RRtype: TypeA})

	res := tree.FindZone(NewName("www.example.com."))
	if res.Matched == nil {
		t.Fatalf("expected exact match for www.example.com.")
	}
	if res.Apex != apex {
		t.Fatalf("expected apex %v, got %v", apex.Name, res.Apex.Name)
	}
}

func TestFindZoneNXDomainVsNoData(t *testing.T) {
	tree := NewTree()
	NewApexZone(tree, NewName("example.com."), Primary)
	tree.GetOrAddSubDomainZone(NewName("www.example.com."), nil)
	tree.GetOrAddSubDomainZone(NewName("a.www.example.com."), nil)

	res := tree.FindZone(NewName("www.example.com."))
	if !res.HasSubDomains {
		t.Fatalf("www.example.com. has a child (a.www...) and should report HasSubDomains")
	}

	res = tree.FindZone(NewName("nope.example.com."))
	if res.Matched != nil {
		t.Fatalf("expected no exact match for nope.example.com.")
	}
	if res.HasSubDomains {
		t.Fatalf("nope.example.com. has no children of its own")
	}
}

func TestFindZoneWildcard(t *testing.T) {
	tree := NewTree()
	NewApexZone(tree, NewName("example.com."), Primary)
	wc := tree.GetOrAddSubDomainZone(NewName("*.example.com."), nil)
	wc.RRtypes.Set(TypeA, RRSet{Name: wc.name, RRtype: TypeA})

	res := tree.FindZone(NewName("anything.example.com."))
	if res.Matched != nil {
		t.Fatalf("anything.example.com. should not exist exactly")
	}
	if res.Wildcard == nil {
		t.Fatalf("expected wildcard match via *.example.com.")
	}
}

func TestFindZoneDelegation(t *testing.T) {
	tree := NewTree()
	NewApexZone(tree, NewName("example.com."), Primary)
	cut := tree.GetOrAddSubDomainZone(NewName("sub.example.com."), nil)
	cut.RRtypes.AddRecord(Record{Name: cut.name, RR: mustRR(t, "sub.example.com. 3600 IN NS ns1.sub.example.com.")})
	tree.GetOrAddSubDomainZone(NewName("www.sub.example.com."), nil)

	res := tree.FindZone(NewName("www.sub.example.com."))
	if res.Delegation == nil {
		t.Fatalf("expected a delegation cut crossed at sub.example.com.")
	}
	if !res.Delegation.name.Equal(NewName("sub.example.com.")) {
		t.Fatalf("expected delegation cut at sub.example.com., got %v", res.Delegation.name)
	}
}

func TestTryRemoveRejectsNonEmpty(t *testing.T) {
	tree := NewTree()
	node := tree.GetOrAddSubDomainZone(NewName("a.example.com."), nil)
	node.RRtypes.Set(TypeA, RRSet{Name: node.name, RRtype: TypeA})

	if tree.TryRemove(NewName("a.example.com.")) {
		t.Fatalf("TryRemove should refuse a node carrying records")
	}
}

func TestGetOrAddSubDomainZoneIdempotent(t *testing.T) {
	tree := NewTree()
	n1 := tree.GetOrAddSubDomainZone(NewName("x.y.example.com."), nil)
	n2 := tree.GetOrAddSubDomainZone(NewName("x.y.example.com."), nil)
	if n1 != n2 {
		t.Fatalf("expected the same node on repeated materialization")
	}
}
