package zone

// AllRecords walks the apex's own subtree and returns every record it
// owns, tags included, for the zone file writer. Unlike
// transfer.QueryZoneTransferRecords it does not frame the output with
// SOA duplication or skip disabled records; the snapshot format round-
// trips the zone exactly, disabled flag and all.
func (z *ApexZone) AllRecords() []Record {
	var out []Record
	collectRecords(z.node, &out)
	return out
}

func collectRecords(n *Node, out *[]Record) {
	for _, t := range n.RRtypes.Keys() {
		rrset, _ := n.RRtypes.Get(t)
		*out = append(*out, rrset.Records...)
	}
	for _, label := range n.childNames() {
		child, ok := n.children.Get(label)
		if !ok || child.IsApex() {
			continue // a delegated child apex is its own zone file
		}
		collectRecords(child, out)
	}
}

// LoadRecords rebuilds the apex's subtree from a flat record list, used
// to populate a zone freshly read from a snapshot file. It does not go
// through mutate/journal; a load is not itself a mutation to record.
func (z *ApexZone) LoadRecords(records []Record) {
	z.mu.Lock()
	defer z.mu.Unlock()

	byName := map[string][]Record{}
	var order []Name
	seen := map[string]bool{}
	for _, rec := range records {
		key := rec.Name.Key()
		byName[key] = append(byName[key], rec)
		if !seen[key] {
			seen[key] = true
			order = append(order, rec.Name)
		}
	}

	for _, name := range order {
		node := z.Tree.GetOrAddSubDomainZone(name, nil)
		byType := map[RecordType][]Record{}
		for _, rec := range byName[name.Key()] {
			byType[rec.Type()] = append(byType[rec.Type()], rec)
		}
		for t, recs := range byType {
			node.RRtypes.Set(t, RRSet{Name: name, RRtype: t, Records: recs})
		}
	}

	names := []Name{}
	collectNames(z.node, &names)
	reattachGlue(z.node, names)
}
