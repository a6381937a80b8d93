package zone

import (
	"net"
	"strconv"
)

// FWDTarget describes where a Forwarder zone (or one of its subdomains)
// forwards queries to. A zero Port means the default DNS port.
type FWDTarget struct {
	Address string
	Port    uint16
}

func (t FWDTarget) hostport() string {
	if t.Port == 0 {
		return t.Address
	}
	return net.JoinHostPort(t.Address, strconv.Itoa(int(t.Port)))
}

func parseFWDTarget(s string) FWDTarget {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return FWDTarget{Address: s}
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return FWDTarget{Address: s}
	}
	return FWDTarget{Address: host, Port: uint16(p)}
}

// SetForwarders configures the FWD targets for name (either the apex
// itself or a subdomain), storing them as a synthetic RRset under
// TypeFWD so lookup reuses the ordinary node/RRSet machinery instead of a
// parallel map.
func (z *ApexZone) SetForwarders(name Name, targets []FWDTarget) {
	node := z.Tree.GetOrAddSubDomainZone(name, nil)
	key := name.Key()
	addrs := make([]string, 0, len(targets))
	for _, t := range targets {
		addrs = append(addrs, t.hostport())
	}
	z.mu.Lock()
	z.ForwarderTargets[key] = addrs
	z.mu.Unlock()
	if len(targets) == 0 {
		node.RRtypes.Delete(TypeFWD)
		return
	}
	// A zero-length RRSet with no dns.RR records still flags "FWD
	// configured here" for FindForwarder's longest-match walk below; the
	// authoritative address list lives in ForwarderTargets.
	node.RRtypes.Set(TypeFWD, RRSet{Name: name, RRtype: TypeFWD})
}

// FindForwarder picks the forwarding target set for name by longest
// match: exact subdomain, then closest enclosing subdomain, then apex.
func (z *ApexZone) FindForwarder(name Name) ([]FWDTarget, bool) {
	labels := name.Labels()
	for i := len(labels); i >= 0; i-- {
		candidate := buildName(labels[:i])
		node, ok := z.Tree.GetNode(candidate)
		if !ok {
			continue
		}
		if _, has := node.RRtypes.Get(TypeFWD); !has {
			continue
		}
		z.mu.RLock()
		addrs := z.ForwarderTargets[candidate.Key()]
		z.mu.RUnlock()
		if len(addrs) == 0 {
			continue
		}
		out := make([]FWDTarget, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, parseFWDTarget(a))
		}
		return out, true
	}
	return nil, false
}
