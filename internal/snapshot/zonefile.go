// Package snapshot implements the zone file persistence format: magic
// "DZ" plus a version byte, int32 record count, then that many records
// (with tag blobs from v3 onward), and a leading zone-info blob from v4
// onward. The reader accepts v2 and v3 for legacy migration; the writer
// always emits v4.
//
// Each record is stored as its RFC 1035 presentation-format text,
// length-prefixed, parsed back with dns.NewRR on load. That keeps every
// record type the query engine and transfer code already handle
// round-trippable without hand-rolling per-RRtype binary rdata codecs.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/miekg/dns"

	"github.com/stenstam/zonecore/internal/zone"
)

const (
	magic      = "DZ"
	versionV2  = 2
	versionV3  = 3
	versionV4  = 4
	currentVer = versionV4
)

// Info is the zone metadata blob carried by v4 snapshots.
type Info struct {
	Name             string
	Type             zone.ZoneType
	Disabled         bool
	Dnssec           zone.DnssecStatus
	TransferAllowed  []string
	NotifyDownstream []string
	UpdateAllowed    bool
	UpdateRRTypes    []uint16
	LastModified     time.Time
}

// Write serializes info and records to path in v4 format. Internal
// zones must never reach this call; the manager is responsible for that
// gate.
func Write(path string, info Info, records []zone.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: creating %s: %w", path, err)
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(magic); err != nil {
		return err
	}
	if err := w.WriteByte(currentVer); err != nil {
		return err
	}
	if err := writeInfo(w, info); err != nil {
		return fmt.Errorf("snapshot: writing zone info for %s: %w", info.Name, err)
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(records))); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writeRecord(w, rec); err != nil {
			return fmt.Errorf("snapshot: writing record %s: %w", rec.Name, err)
		}
	}
	return w.Flush()
}

// Read parses a v2, v3, or v4 zone file. Unknown magic or version
// produces an error the caller maps to InvalidZoneFile.
func Read(path string) (*Info, []zone.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	gotMagic := make([]byte, 2)
	if _, err := io.ReadFull(r, gotMagic); err != nil {
		return nil, nil, fmt.Errorf("snapshot: reading magic from %s: %w", path, err)
	}
	if string(gotMagic) != magic {
		return nil, nil, fmt.Errorf("snapshot: %s: bad magic %q, want %q", path, gotMagic, magic)
	}
	ver, err := r.ReadByte()
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: reading version from %s: %w", path, err)
	}

	var info Info
	switch ver {
	case versionV4:
		if info, err = readInfo(r); err != nil {
			return nil, nil, fmt.Errorf("snapshot: reading zone info from %s: %w", path, err)
		}
	case versionV3:
		disabled, err := readBool(r)
		if err != nil {
			return nil, nil, err
		}
		info.Disabled = disabled
	case versionV2:
		// No disabled flag, no tag blobs; zone name and type inferred
		// below once records are parsed.
	default:
		return nil, nil, fmt.Errorf("snapshot: %s: unsupported version %d", path, ver)
	}

	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, nil, fmt.Errorf("snapshot: reading record count from %s: %w", path, err)
	}

	records := make([]zone.Record, 0, count)
	for i := int32(0); i < count; i++ {
		rec, err := readRecord(r, ver)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot: reading record %d from %s: %w", i, path, err)
		}
		records = append(records, rec)
	}

	if ver < versionV4 {
		inferZoneType(&info, records)
	}
	return &info, records, nil
}

// inferZoneType fills the name/type metadata pre-v4 files never carried:
// a zone with no SOA at all is treated as a Stub (NS-only) or Forwarder
// (FWD-only), distinguished by which RRset is present; a zone with a SOA
// is Primary unless its MNAME carries the "secondary-of:" marker this
// module uses to flag mirrored zones.
func inferZoneType(info *Info, records []zone.Record) {
	for _, rec := range records {
		if soa, ok := rec.RR.(*dns.SOA); ok {
			info.Name = soa.Hdr.Name
			if len(soa.Ns) > len("secondary-of:") && soa.Ns[:len("secondary-of:")] == "secondary-of:" {
				info.Type = zone.Secondary
			} else {
				info.Type = zone.Primary
			}
			return
		}
	}
	if len(records) > 0 {
		info.Name = records[0].RR.Header().Name
	}
	for _, rec := range records {
		if rec.Type() == zone.TypeFWD {
			info.Type = zone.Forwarder
			return
		}
	}
	info.Type = zone.Stub
}

func writeInfo(w *bufio.Writer, info Info) error {
	if err := writeString(w, info.Name); err != nil {
		return err
	}
	if err := w.WriteByte(byte(info.Type)); err != nil {
		return err
	}
	if err := writeBool(w, info.Disabled); err != nil {
		return err
	}
	if err := w.WriteByte(byte(info.Dnssec)); err != nil {
		return err
	}
	if err := writeStringSlice(w, info.TransferAllowed); err != nil {
		return err
	}
	if err := writeStringSlice(w, info.NotifyDownstream); err != nil {
		return err
	}
	if err := writeBool(w, info.UpdateAllowed); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(info.UpdateRRTypes))); err != nil {
		return err
	}
	for _, t := range info.UpdateRRTypes {
		if err := binary.Write(w, binary.BigEndian, t); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.BigEndian, info.LastModified.UnixNano())
}

func readInfo(r *bufio.Reader) (Info, error) {
	var info Info
	var err error
	if info.Name, err = readString(r); err != nil {
		return info, err
	}
	zt, err := r.ReadByte()
	if err != nil {
		return info, err
	}
	info.Type = zone.ZoneType(zt)
	if info.Disabled, err = readBool(r); err != nil {
		return info, err
	}
	dnssec, err := r.ReadByte()
	if err != nil {
		return info, err
	}
	info.Dnssec = zone.DnssecStatus(dnssec)
	if info.TransferAllowed, err = readStringSlice(r); err != nil {
		return info, err
	}
	if info.NotifyDownstream, err = readStringSlice(r); err != nil {
		return info, err
	}
	if info.UpdateAllowed, err = readBool(r); err != nil {
		return info, err
	}
	var nTypes int32
	if err := binary.Read(r, binary.BigEndian, &nTypes); err != nil {
		return info, err
	}
	for i := int32(0); i < nTypes; i++ {
		var t uint16
		if err := binary.Read(r, binary.BigEndian, &t); err != nil {
			return info, err
		}
		info.UpdateRRTypes = append(info.UpdateRRTypes, t)
	}
	var nanos int64
	if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
		return info, err
	}
	info.LastModified = time.Unix(0, nanos).UTC()
	return info, nil
}

func writeRecord(w *bufio.Writer, rec zone.Record) error {
	if err := writeString(w, rec.RR.String()); err != nil {
		return err
	}
	return writeTag(w, rec.Tag)
}

func readRecord(r *bufio.Reader, ver byte) (zone.Record, error) {
	text, err := readString(r)
	if err != nil {
		return zone.Record{}, err
	}
	rr, err := dns.NewRR(text)
	if err != nil {
		return zone.Record{}, fmt.Errorf("parsing %q: %w", text, err)
	}
	rec := zone.Record{Name: zone.NewName(rr.Header().Name), RR: rr}
	if ver >= versionV3 {
		tag, err := readTag(r)
		if err != nil {
			return zone.Record{}, err
		}
		rec.Tag = tag
	}
	return rec, nil
}

// Tag blob layout: one byte discriminant, then type-specific fields.
// Discriminants: 0 none, 1 generic, 2 NS, 3 SOA, 4 SVCB.
func writeTag(w *bufio.Writer, tag zone.RecordTag) error {
	switch {
	case tag.NS != nil:
		if err := w.WriteByte(2); err != nil {
			return err
		}
		if err := writeGeneric(w, tag.NS.GenericTag); err != nil {
			return err
		}
		if err := writeRRStrings(w, tag.NS.GlueA); err != nil {
			return err
		}
		return writeRRStrings(w, tag.NS.GlueAAAA)
	case tag.SOA != nil:
		if err := w.WriteByte(3); err != nil {
			return err
		}
		if err := writeGeneric(w, tag.SOA.GenericTag); err != nil {
			return err
		}
		return w.WriteByte(byte(tag.SOA.SerialScheme))
	case tag.SVCB != nil:
		if err := w.WriteByte(4); err != nil {
			return err
		}
		if err := writeGeneric(w, tag.SVCB.GenericTag); err != nil {
			return err
		}
		return writeBool(w, tag.SVCB.AutoHint)
	case tag.Generic != nil:
		if err := w.WriteByte(1); err != nil {
			return err
		}
		return writeGeneric(w, *tag.Generic)
	default:
		return w.WriteByte(0)
	}
}

func readTag(r *bufio.Reader) (zone.RecordTag, error) {
	var tag zone.RecordTag
	disc, err := r.ReadByte()
	if err != nil {
		return tag, err
	}
	switch disc {
	case 0:
		return tag, nil
	case 1:
		g, err := readGeneric(r)
		if err != nil {
			return tag, err
		}
		tag.Generic = &g
	case 2:
		g, err := readGeneric(r)
		if err != nil {
			return tag, err
		}
		a, err := readRRStrings(r)
		if err != nil {
			return tag, err
		}
		aaaa, err := readRRStrings(r)
		if err != nil {
			return tag, err
		}
		tag.NS = &zone.NSTag{GenericTag: g, GlueA: a, GlueAAAA: aaaa}
	case 3:
		g, err := readGeneric(r)
		if err != nil {
			return tag, err
		}
		scheme, err := r.ReadByte()
		if err != nil {
			return tag, err
		}
		tag.SOA = &zone.SOATag{GenericTag: g, SerialScheme: zone.SerialScheme(scheme)}
	case 4:
		g, err := readGeneric(r)
		if err != nil {
			return tag, err
		}
		hint, err := readBool(r)
		if err != nil {
			return tag, err
		}
		tag.SVCB = &zone.SVCBTag{GenericTag: g, AutoHint: hint}
	default:
		return tag, fmt.Errorf("unknown tag discriminant %d", disc)
	}
	return tag, nil
}

func writeGeneric(w *bufio.Writer, g zone.GenericTag) error {
	if err := writeBool(w, g.Disabled); err != nil {
		return err
	}
	if err := writeString(w, g.Comment); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, g.LastUsed.UnixNano())
}

func readGeneric(r *bufio.Reader) (zone.GenericTag, error) {
	var g zone.GenericTag
	var err error
	if g.Disabled, err = readBool(r); err != nil {
		return g, err
	}
	if g.Comment, err = readString(r); err != nil {
		return g, err
	}
	var nanos int64
	if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
		return g, err
	}
	if nanos != 0 {
		g.LastUsed = time.Unix(0, nanos).UTC()
	}
	return g, nil
}

func writeRRStrings(w *bufio.Writer, rrs []dns.RR) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(rrs))); err != nil {
		return err
	}
	for _, rr := range rrs {
		if err := writeString(w, rr.String()); err != nil {
			return err
		}
	}
	return nil
}

func readRRStrings(r *bufio.Reader) ([]dns.RR, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]dns.RR, 0, n)
	for i := int32(0); i < n; i++ {
		text, err := readString(r)
		if err != nil {
			return nil, err
		}
		rr, err := dns.NewRR(text)
		if err != nil {
			return nil, fmt.Errorf("parsing glue %q: %w", text, err)
		}
		out = append(out, rr)
	}
	return out, nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringSlice(w *bufio.Writer, ss []string) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r *bufio.Reader) ([]string, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func writeBool(w *bufio.Writer, b bool) error {
	if b {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func readBool(r *bufio.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
