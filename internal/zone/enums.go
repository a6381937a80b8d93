package zone

import "github.com/miekg/dns"

// Re-exported standard RR type constants, so callers rarely need to
// import miekg/dns directly just to reference a well-known type.
const (
	TypeA          = dns.TypeA
	TypeAAAA       = dns.TypeAAAA
	TypeNS         = dns.TypeNS
	TypeSOA        = dns.TypeSOA
	TypeCNAME      = dns.TypeCNAME
	TypeDNAME      = dns.TypeDNAME
	TypeMX         = dns.TypeMX
	TypeSRV        = dns.TypeSRV
	TypeSVCB       = dns.TypeSVCB
	TypeHTTPS      = dns.TypeHTTPS
	TypeTXT        = dns.TypeTXT
	TypeDS         = dns.TypeDS
	TypeDNSKEY     = dns.TypeDNSKEY
	TypeRRSIG      = dns.TypeRRSIG
	TypeNSEC       = dns.TypeNSEC
	TypeNSEC3      = dns.TypeNSEC3
	TypeNSEC3PARAM = dns.TypeNSEC3PARAM
	TypeAXFR       = dns.TypeAXFR
	TypeIXFR       = dns.TypeIXFR
)

// TypeFWD is a pseudo-RR-type number (3995, not a registered type and
// outside the IANA private-use range 65280-65534) used to store Forwarder-zone forwarding targets in the node's RRTypeStore
// without inventing a parallel storage mechanism.
const TypeFWD uint16 = 0x0F9B

// ZoneOption is a small set of per-zone behavior toggles.
type ZoneOption uint8

const (
	OptOnlineSigning ZoneOption = iota + 1
	OptAllowUpdates
	OptFrozen
)

var zoneOptionNames = map[ZoneOption]string{
	OptOnlineSigning: "online-signing",
	OptAllowUpdates:  "allow-updates",
	OptFrozen:        "frozen",
}

func (o ZoneOption) String() string {
	if s, ok := zoneOptionNames[o]; ok {
		return s
	}
	return "unknown"
}
