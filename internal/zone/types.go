// Package zone implements the in-memory authoritative namespace: the zone
// tree, the apex zone variants, and the query engine that answers
// questions against them.
package zone

import (
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ZoneType identifies which apex variant a zone is.
type ZoneType uint8

const (
	Primary ZoneType = iota + 1
	Secondary
	Stub
	Forwarder
)

var zoneTypeNames = map[ZoneType]string{
	Primary:   "primary",
	Secondary: "secondary",
	Stub:      "stub",
	Forwarder: "forwarder",
}

func (t ZoneType) String() string {
	if s, ok := zoneTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// DnssecStatus tracks whether and how a zone is signed.
type DnssecStatus uint8

const (
	Unsigned DnssecStatus = iota
	SignedWithNSEC
	SignedWithNSEC3
)

func (s DnssecStatus) String() string {
	switch s {
	case SignedWithNSEC:
		return "signed-nsec"
	case SignedWithNSEC3:
		return "signed-nsec3"
	default:
		return "unsigned"
	}
}

// RefreshState is the Secondary/Stub refresh state machine.
type RefreshState uint8

const (
	Idle RefreshState = iota
	Refreshing
	Failed
	Expired
)

func (s RefreshState) String() string {
	switch s {
	case Refreshing:
		return "refreshing"
	case Failed:
		return "failed"
	case Expired:
		return "expired"
	default:
		return "idle"
	}
}

// MaxCNAMEHops bounds CNAME chase depth.
const MaxCNAMEHops = 16

// Default SOA-timer values used when a Secondary/Stub zone has not yet
// pulled its first SOA.
const (
	DefaultSOARefresh = 3600
	DefaultSOARetry   = 600
	DefaultSOAExpire  = 604800
)

// Name is the canonical, lowercase, dot-terminated owner name used as a
// tree/map key. String() returns the originally-supplied case.
type Name struct {
	key     string // lowercase, fully qualified, used for comparison/keys
	display string // original-case form, used for output
}

// NewName canonicalizes s: case-folds for the key and fully-qualifies
// both forms. Display preserves the original case.
func NewName(s string) Name {
	fq := dns.Fqdn(s)
	return Name{key: strings.ToLower(fq), display: fq}
}

func (n Name) Key() string       { return n.key }
func (n Name) String() string    { return n.display }
func (n Name) IsRoot() bool      { return n.key == "." }
func (n Name) Equal(o Name) bool { return n.key == o.key }

// Labels returns the name's labels top-down, i.e. "www.example.com." ->
// ["com", "example", "www"].
func (n Name) Labels() []string {
	if n.IsRoot() {
		return nil
	}
	parts := dns.SplitDomainName(n.key)
	rev := make([]string, len(parts))
	for i, p := range parts {
		rev[len(parts)-1-i] = p
	}
	return rev
}

// IsSubdomainOf reports whether n is equal to or a descendant of
// parent, i.e. in-bailiwick for it.
func (n Name) IsSubdomainOf(parent Name) bool {
	return dns.IsSubDomain(parent.key, n.key)
}

// Parent returns the immediate parent name, or the root if n is already
// the root.
func (n Name) Parent() Name {
	if n.IsRoot() {
		return n
	}
	idx := dns.Split(n.key)
	if len(idx) <= 1 {
		return NewName(".")
	}
	return NewName(n.key[idx[1]:])
}

// WildcardOver returns the wildcard name "*.<parent-of-n>", the sibling
// consulted for RFC 4592 wildcard synthesis.
func (n Name) WildcardOver() Name {
	return NewName("*." + n.Parent().key)
}

// RecordType is a thin alias over the wire RR type, kept distinct so the
// zone package's public surface doesn't leak miekg/dns naming everywhere.
type RecordType = uint16

// RecordTag is the per-record metadata union, keyed by the record's
// type. A small tagged union rather than a generic attribute bag.
type RecordTag struct {
	Generic *GenericTag
	NS      *NSTag
	SOA     *SOATag
	SVCB    *SVCBTag
}

// GenericTag covers the common fields every record can carry.
type GenericTag struct {
	Disabled bool
	Comment  string
	LastUsed time.Time
}

// NSTag carries in-bailiwick glue attached to an NS record. Glue is not
// independently queryable; it travels with its NS record.
type NSTag struct {
	GenericTag
	GlueA    []dns.RR
	GlueAAAA []dns.RR
}

// SOATag carries the serial-bump scheme selection for a Primary zone.
type SOATag struct {
	GenericTag
	SerialScheme SerialScheme
}

type SerialScheme uint8

const (
	SerialMonotonic SerialScheme = iota
	SerialDateEncoded
)

// SVCBTag carries auto-hint bookkeeping for SVCB/HTTPS records.
type SVCBTag struct {
	GenericTag
	AutoHint bool
}

// Record is a single resource record plus its tag. Class is always IN,
// so it is not modeled as a field.
type Record struct {
	Name Name
	RR   dns.RR
	Tag  RecordTag
}

func (r Record) Type() RecordType { return r.RR.Header().Rrtype }
func (r Record) TTL() uint32      { return r.RR.Header().Ttl }

func (r Record) Disabled() bool {
	switch {
	case r.Tag.Generic != nil:
		return r.Tag.Generic.Disabled
	case r.Tag.NS != nil:
		return r.Tag.NS.Disabled
	case r.Tag.SOA != nil:
		return r.Tag.SOA.Disabled
	case r.Tag.SVCB != nil:
		return r.Tag.SVCB.Disabled
	}
	return false
}
