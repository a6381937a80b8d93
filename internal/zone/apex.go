package zone

import (
	"sync"
	"time"

	"github.com/miekg/dns"
)

// TransferPolicy controls who may AXFR/IXFR a Primary or Secondary zone.
type TransferPolicy struct {
	AllowedFrom []string // CIDR or address literals
}

// NotifyPolicy controls NOTIFY fan-out for a Primary zone.
type NotifyPolicy struct {
	Downstreams []string
}

// DynUpdatePolicy controls whether DNS UPDATE is accepted: a yes/no gate
// plus the RR types allowed.
type DynUpdatePolicy struct {
	Allow   bool
	RRTypes map[RecordType]bool
}

// Signer is the external collaborator that performs RRSIG generation and
// key-material operations.
type Signer interface {
	SignRRset(zone string, rrset RRSet) ([]dns.RR, error)
	KeyTags(zone string) []uint16
}

// ApexZone is the root node of a zone. Rather than four separate types
// connected by inheritance, it is a tagged variant: one struct, a Type
// discriminant, and behavior exposed through methods that switch on Type
// where the variants genuinely differ (mutation, refresh). The shared
// capability set
// (QueryRecords/GetRecords/UpdateDnssecStatus/ContainsNameServerRecords)
// is implemented once, on the common struct.
type ApexZone struct {
	mu sync.RWMutex

	Name Name
	Type ZoneType
	Tree *Tree // the process-wide tree this apex's nodes live in
	node *Node // this apex's own root node

	Disabled bool
	Options  map[ZoneOption]bool

	Dnssec DnssecStatus
	Signer Signer
	NSEC3  NSEC3Params

	// Primary-only.
	Journal        Journaler
	SerialScheme   SerialScheme
	TransferPolicy TransferPolicy
	NotifyPolicy   NotifyPolicy
	UpdatePolicy   DynUpdatePolicy

	// Secondary/Stub-only refresh state machine.
	RefreshState   RefreshState
	LastRefreshed  time.Time
	RefreshingLock sync.Mutex // suppresses concurrent refreshes of the same zone
	Upstream       string
	SOARefresh     uint32
	SOARetry       uint32
	SOAExpire      uint32

	// Forwarder-only: additional FWD targets keyed by subdomain name,
	// beyond the apex-level FWD RRset stored in node.RRtypes.
	ForwarderTargets map[string][]string

	LastModified time.Time
}

// Journaler is the subset of journal.Journal this package depends on,
// expressed as an interface so that zone does not import the journal
// package: zone.ApexZone only needs to append/read sequences.
type Journaler interface {
	Append(oldSOA dns.RR, deleted []dns.RR, newSOA dns.RR, added []dns.RR)
	Len() int
}

// NewApexZone constructs an apex of the given type, rooted in tree at
// name, and registers its node.
func NewApexZone(tree *Tree, name Name, zt ZoneType) *ApexZone {
	az := &ApexZone{
		Name:             name,
		Type:             zt,
		Tree:             tree,
		Options:          map[ZoneOption]bool{},
		ForwarderTargets: map[string][]string{},
		SOARefresh:       DefaultSOARefresh,
		SOARetry:         DefaultSOARetry,
		SOAExpire:        DefaultSOAExpire,
	}
	node := tree.GetOrAddSubDomainZone(name, nil)
	node.apex = az
	az.node = node
	return az
}

// Node returns the apex's own root tree node.
func (z *ApexZone) Node() *Node { return z.node }

// ContainsNameServerRecords reports whether the apex carries an NS RRset.
func (z *ApexZone) ContainsNameServerRecords() bool {
	rrset, ok := z.node.RRtypes.Get(TypeNS)
	return ok && len(rrset.Records) > 0
}

// GetRecords returns the raw RRSet for (name, type) without any query
// processing (wildcard, delegation, signing) applied, the shared
// low-level accessor alongside QueryRecords.
func (z *ApexZone) GetRecords(name Name, t RecordType) (RRSet, bool) {
	node, ok := z.Tree.GetNode(name)
	if !ok {
		return RRSet{}, false
	}
	return node.RRtypes.Get(t)
}

// QueryRecords returns the RRSet for (name, type), optionally asking the
// configured Signer to produce RRSIGs when dnssecOk is requested and the
// zone is signed. All four variants answer through this path.
func (z *ApexZone) QueryRecords(name Name, t RecordType, dnssecOk bool) (RRSet, bool) {
	rrset, ok := z.GetRecords(name, t)
	if !ok {
		return rrset, false
	}
	if dnssecOk && z.Dnssec != Unsigned && z.Signer != nil && len(rrset.RRSIGs) == 0 {
		sigs, err := z.Signer.SignRRset(z.Name.String(), rrset)
		if err == nil {
			rrset.RRSIGs = sigs
		}
	}
	return rrset, true
}

// UpdateDnssecStatus transitions the zone's signing status.
func (z *ApexZone) UpdateDnssecStatus(status DnssecStatus) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.Dnssec = status
}

// IsSigned reports whether the zone currently publishes DNSSEC.
func (z *ApexZone) IsSigned() bool { return z.Dnssec != Unsigned }

// SOARecord returns the apex's SOA record, if any (Primary/Secondary
// only; Stub/Forwarder zones hold no SOA).
func (z *ApexZone) SOARecord() (*dns.SOA, bool) {
	rrset, ok := z.node.RRtypes.Get(TypeSOA)
	if !ok || len(rrset.Records) == 0 {
		return nil, false
	}
	soa, ok := rrset.Records[0].RR.(*dns.SOA)
	return soa, ok
}

// Serial returns the current SOA serial, or 0 if the zone has no SOA.
func (z *ApexZone) Serial() uint32 {
	if soa, ok := z.SOARecord(); ok {
		return soa.Serial
	}
	return 0
}

// nsec3Params returns the zone's configured NSEC3 parameters, applying the
// RFC 5155-recommended default (SHA-1, 0 iterations, no salt) when the
// zone was switched to NSEC3 signing without explicit tuning.
func (z *ApexZone) nsec3Params() NSEC3Params {
	p := z.NSEC3
	if p.Algorithm == 0 {
		p.Algorithm = 1
	}
	return p
}
