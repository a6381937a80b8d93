package manager

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/journal"
	"github.com/stenstam/zonecore/internal/zone"
)

// ConvertZoneType converts a zone between the supported type pairs;
// every other combination is rejected with ConversionRejected. On any
// failure during the conversion itself, the zone's prior record set is
// restored from an in-memory snapshot taken up front.
func (m *Manager) ConvertZoneType(name string, newType zone.ZoneType) (err error) {
	az, lookupErr := m.lookup(name)
	if lookupErr != nil {
		return lookupErr
	}

	backup := az.AllRecords()
	defer func() {
		if err != nil {
			az.LoadRecords(backup)
		}
	}()

	switch {
	case az.Type == zone.Primary && newType == zone.Forwarder:
		if az.IsSigned() {
			return &zone.Error{Kind: zone.KindConversionRejected, Zone: name, Msg: "cannot convert a signed primary zone to forwarder"}
		}
		err = m.primaryToForwarder(az)
	case az.Type == zone.Secondary && newType == zone.Primary:
		err = m.secondaryToPrimary(az)
	case az.Type == zone.Secondary && newType == zone.Forwarder:
		err = m.secondaryToForwarder(az)
	case az.Type == zone.Forwarder && newType == zone.Primary:
		err = m.forwarderToPrimary(az)
	default:
		return &zone.Error{Kind: zone.KindConversionRejected, Zone: name, Msg: fmt.Sprintf("conversion from %s to %s is not supported", az.Type, newType)}
	}
	if err != nil {
		return err
	}
	az.Type = newType
	m.refreshIndex(az)
	return nil
}

func stripType(az *zone.ApexZone, t zone.RecordType) {
	az.Node().RRtypes.Delete(t)
}

func (m *Manager) primaryToForwarder(az *zone.ApexZone) error {
	stripType(az, zone.TypeSOA)
	stripType(az, zone.TypeNS)
	az.Journal = nil
	return nil
}

func (m *Manager) secondaryToPrimary(az *zone.ApexZone) error {
	for _, t := range []zone.RecordType{zone.TypeRRSIG, zone.TypeNSEC, zone.TypeNSEC3, zone.TypeNSEC3PARAM, zone.TypeDNSKEY} {
		stripType(az, t)
	}
	az.Dnssec = zone.Unsigned
	soa, ok := az.SOARecord()
	if !ok {
		return &zone.Error{Kind: zone.KindInvalidRecord, Zone: az.Name.String(), Msg: "secondary zone has no SOA to convert"}
	}
	soa.Serial++
	rrset := az.Node().RRtypes.GetOnly(zone.TypeSOA)
	rrset.Records[0].RR = soa
	az.Node().RRtypes.Set(zone.TypeSOA, rrset)
	az.Journal = journal.New(az.Name.Key(), 0)
	return nil
}

func (m *Manager) secondaryToForwarder(az *zone.ApexZone) error {
	stripType(az, zone.TypeSOA)
	stripType(az, zone.TypeNS)
	for _, t := range []zone.RecordType{zone.TypeRRSIG, zone.TypeNSEC, zone.TypeNSEC3, zone.TypeNSEC3PARAM, zone.TypeDNSKEY} {
		stripType(az, t)
	}
	az.Dnssec = zone.Unsigned
	return nil
}

func (m *Manager) forwarderToPrimary(az *zone.ApexZone) error {
	stripType(az, zone.TypeFWD)
	az.ForwarderTargets = map[string][]string{}
	soa := &dns.SOA{
		Hdr:     dns.RR_Header{Name: az.Name.String(), Rrtype: zone.TypeSOA, Class: dns.ClassINET, Ttl: 3600},
		Ns:      az.Name.String(),
		Mbox:    "hostmaster." + az.Name.String(),
		Serial:  1,
		Refresh: zone.DefaultSOARefresh,
		Retry:   zone.DefaultSOARetry,
		Expire:  zone.DefaultSOAExpire,
		Minttl:  3600,
	}
	az.Node().RRtypes.Set(zone.TypeSOA, zone.RRSet{
		Name: az.Name, RRtype: zone.TypeSOA,
		Records: []zone.Record{{Name: az.Name, RR: soa}},
	})
	ns := &dns.NS{Hdr: dns.RR_Header{Name: az.Name.String(), Rrtype: zone.TypeNS, Class: dns.ClassINET, Ttl: 3600}, Ns: az.Name.String()}
	az.Node().RRtypes.AddRecord(zone.Record{Name: az.Name, RR: ns})
	az.Journal = journal.New(az.Name.Key(), 0)
	return nil
}
