package manager

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/keystore"
	"github.com/stenstam/zonecore/internal/zone"
)

// KeyGenerator is the external collaborator that mints DNSSEC key
// material, kept distinct from zone.Signer (which only signs RRsets and
// reports active key tags). Key generation, like RRSIG cryptography,
// lives behind an interface the caller supplies a real implementation
// for.
type KeyGenerator interface {
	GenerateKey(zoneName string, flags uint16, algorithm uint8) (dnskey dns.RR, privateKeyBlob string, err error)
}

// GenerateDnsKey mints a new key via gen, stores it in the keystore as
// Published, and publishes its DNSKEY record at the zone apex. flags
// should carry dns.SEP for a KSK, 0 for a ZSK.
func (m *Manager) GenerateDnsKey(name string, flags uint16, algorithm uint8, gen KeyGenerator) (uint16, error) {
	if m.keys == nil {
		return 0, &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: "no keystore configured"}
	}
	az, err := m.lookup(name)
	if err != nil {
		return 0, err
	}
	if az.Type != zone.Primary {
		return 0, &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: "only a primary zone can hold DNSSEC keys"}
	}

	rr, blob, err := gen.GenerateKey(az.Name.String(), flags, algorithm)
	if err != nil {
		return 0, fmt.Errorf("generating key for %s: %w", name, err)
	}
	dnskey, ok := rr.(*dns.DNSKEY)
	if !ok {
		return 0, fmt.Errorf("key generator returned non-DNSKEY record for %s", name)
	}
	keyID := dnskey.KeyTag()

	if err := m.keys.PutKey(keystore.DnssecKey{
		ZoneName:   az.Name.String(),
		State:      keystore.StatePublished,
		KeyID:      keyID,
		Flags:      flags,
		Algorithm:  dns.AlgorithmToString[algorithm],
		PrivateKey: blob,
		KeyRR:      dnskey.String(),
	}); err != nil {
		return 0, err
	}

	az.Node().RRtypes.AddRecord(zone.Record{Name: az.Name, RR: dnskey})
	m.refreshIndex(az)
	return keyID, nil
}

// UpdateDnsKey changes a stored key's comment/bookkeeping; it does not
// alter published wire records.
func (m *Manager) UpdateDnsKey(name string, keyID uint16, comment string) error {
	if m.keys == nil {
		return &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: "no keystore configured"}
	}
	keys, err := m.keys.KeysForZone(zone.NewName(name).String())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.KeyID == keyID {
			k.Comment = comment
			return m.keys.PutKey(k)
		}
	}
	return &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: fmt.Sprintf("no key %d stored for zone", keyID)}
}

// DeleteDnsKey removes a key's DNSKEY record from the zone and erases
// it from the keystore.
func (m *Manager) DeleteDnsKey(name string, keyID uint16) error {
	az, err := m.lookup(name)
	if err != nil {
		return err
	}
	removeDNSKEYByTag(az, keyID)
	if m.keys != nil {
		if err := m.keys.DeleteKey(az.Name.String(), keyID); err != nil {
			return err
		}
	}
	m.refreshIndex(az)
	return nil
}

// RetireDnsKey marks a key Retired in the keystore and withdraws its
// DNSKEY record from publication. Unlike Delete, the key row itself is
// kept for audit/rollback.
func (m *Manager) RetireDnsKey(name string, keyID uint16) error {
	if m.keys == nil {
		return &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: "no keystore configured"}
	}
	az, err := m.lookup(name)
	if err != nil {
		return err
	}
	if err := m.keys.SetKeyState(az.Name.String(), keyID, keystore.StateRetired); err != nil {
		return err
	}
	removeDNSKEYByTag(az, keyID)
	m.refreshIndex(az)
	return nil
}

// RolloverDnsKey generates a successor key of the same flags/algorithm
// via gen, publishes it alongside the outgoing key, and retires the
// outgoing key. The double-signature period a real rollover needs is
// the caller's responsibility to wait out before dropping the old
// DNSKEY.
func (m *Manager) RolloverDnsKey(name string, keyID uint16, gen KeyGenerator) (newKeyID uint16, err error) {
	if m.keys == nil {
		return 0, &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: "no keystore configured"}
	}
	keys, err := m.keys.KeysForZone(zone.NewName(name).String())
	if err != nil {
		return 0, err
	}
	var outgoing *keystore.DnssecKey
	for i := range keys {
		if keys[i].KeyID == keyID {
			outgoing = &keys[i]
			break
		}
	}
	if outgoing == nil {
		return 0, &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: fmt.Sprintf("no key %d stored for zone", keyID)}
	}
	newKeyID, err = m.GenerateDnsKey(name, outgoing.Flags, dns.StringToAlgorithm[outgoing.Algorithm], gen)
	if err != nil {
		return 0, fmt.Errorf("rollover: generating successor for %s key %d: %w", name, keyID, err)
	}
	if err := m.keys.SetKeyState(zone.NewName(name).String(), keyID, keystore.StateRetired); err != nil {
		return newKeyID, err
	}
	return newKeyID, nil
}

func removeDNSKEYByTag(az *zone.ApexZone, keyID uint16) {
	rrset, ok := az.GetRecords(az.Name, zone.TypeDNSKEY)
	if !ok {
		return
	}
	for _, rec := range rrset.Records {
		if dnskey, ok := rec.RR.(*dns.DNSKEY); ok && dnskey.KeyTag() == keyID {
			_ = az.Node().RRtypes.DeleteRecord(rec.RR)
		}
	}
}

// Sign transitions a zone to signed status (NSEC or NSEC3 depending on
// useNSEC3) and installs signer. The actual RRSIG generation happens
// lazily per-query via ApexZone.QueryRecords once signer is installed.
func (m *Manager) Sign(name string, signer zone.Signer, useNSEC3 bool, p zone.NSEC3Params) error {
	az, err := m.lookup(name)
	if err != nil {
		return err
	}
	if az.Type != zone.Primary {
		return &zone.Error{Kind: zone.KindOperationNotSupported, Zone: name, Msg: "only a primary zone can be signed"}
	}
	az.Signer = signer
	if useNSEC3 {
		if err := az.ConvertToNSEC3(p); err != nil {
			return err
		}
	} else if err := az.ConvertToNSEC(); err != nil {
		return err
	}
	m.refreshIndex(az)
	return nil
}

// UnsignZone removes signing and releases the zone's key material.
func (m *Manager) UnsignZone(name string) error {
	az, err := m.lookup(name)
	if err != nil {
		return err
	}
	if err := az.Unsign(); err != nil {
		return err
	}
	az.Signer = nil
	for _, t := range []zone.RecordType{zone.TypeDNSKEY, zone.TypeRRSIG, zone.TypeNSEC, zone.TypeNSEC3, zone.TypeNSEC3PARAM} {
		stripType(az, t)
	}
	if m.keys != nil {
		if err := m.keys.DeleteZoneKeys(az.Name.String()); err != nil {
			m.log.WriteException(err)
		}
	}
	m.refreshIndex(az)
	return nil
}
