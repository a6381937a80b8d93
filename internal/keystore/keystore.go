// Package keystore persists DNSSEC key material and the journal-serial
// index in sqlite. The zone snapshot itself stays the binary "DZ"
// format; this store only backs the two things that format doesn't
// carry on its own: key material opaque to this core (the Signer
// interface owns its format) and a fast lookup from zone+serial to
// journal position so a restart doesn't require replaying the whole
// journal to find a given serial.
package keystore

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultTables holds one CREATE TABLE IF NOT EXISTS statement per
// table, applied idempotently at startup.
var DefaultTables = map[string]string{
	"DnssecKeyStore": `CREATE TABLE IF NOT EXISTS 'DnssecKeyStore' (
id		  INTEGER PRIMARY KEY,
zonename	  TEXT,
state		  TEXT,
keyid		  INTEGER,
flags		  INTEGER,
algorithm	  TEXT,
creator	  	  TEXT,
privatekey	  TEXT,
keyrr		  TEXT,
comment		  TEXT,
UNIQUE (zonename, keyid)
)`,

	"JournalIndex": `CREATE TABLE IF NOT EXISTS 'JournalIndex' (
id		  INTEGER PRIMARY KEY,
zonename	  TEXT,
oldserial	  INTEGER,
newserial	  INTEGER,
position	  INTEGER,
UNIQUE (zonename, oldserial)
)`,
}

// KeyState is the DNSSEC-key lifecycle the manager's key operations
// drive.
type KeyState string

const (
	StateCreated   KeyState = "created"
	StatePublished KeyState = "published"
	StateActive    KeyState = "active"
	StateRetired   KeyState = "retired"
)

// DnssecKey is one row of the DnssecKeyStore table, the public bookkeeping
// alongside the private key material the Signer interface actually owns
// (this core never inspects PrivateKey's contents; it is opaque storage
// for whatever the configured Signer implementation produced).
type DnssecKey struct {
	ZoneName   string
	State      KeyState
	KeyID      uint16
	Flags      uint16 // dns.SEP set => KSK
	Algorithm  string
	Creator    string
	PrivateKey string // opaque, Signer-owned blob
	KeyRR      string // RFC 3597-style presentation form of the DNSKEY
	Comment    string
}

func (k DnssecKey) IsKSK() bool { return k.Flags&0x0001 != 0 }

// Store wraps the sqlite connection: one *sql.DB, one mutex serializing
// writes. All admin writes are single-row upserts, so a plain mutex
// suffices.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if absent) the sqlite file at dbfile and ensures
// its schema exists.
func Open(dbfile string) (*Store, error) {
	if dbfile == "" {
		return nil, fmt.Errorf("keystore: db filename unspecified")
	}
	db, err := sql.Open("sqlite3", dbfile)
	if err != nil {
		return nil, fmt.Errorf("keystore: opening %s: %w", dbfile, err)
	}
	if err := setupTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func setupTables(db *sql.DB) error {
	for name, stmt := range DefaultTables {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("keystore: creating table %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// PutKey upserts a DNSSEC key row, used by GenerateDnsKey/UpdateDnsKey.
func (s *Store) PutKey(k DnssecKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO DnssecKeyStore
		(zonename, state, keyid, flags, algorithm, creator, privatekey, keyrr, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(zonename, keyid) DO UPDATE SET
		state=excluded.state, flags=excluded.flags, algorithm=excluded.algorithm,
		privatekey=excluded.privatekey, keyrr=excluded.keyrr, comment=excluded.comment`,
		k.ZoneName, string(k.State), k.KeyID, k.Flags, k.Algorithm, k.Creator, k.PrivateKey, k.KeyRR, k.Comment)
	if err != nil {
		return fmt.Errorf("keystore: upserting key %d for %s: %w", k.KeyID, k.ZoneName, err)
	}
	return nil
}

// KeysForZone returns every key row stored for zone, newest-inserted last.
func (s *Store) KeysForZone(zone string) ([]DnssecKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT zonename, state, keyid, flags, algorithm, creator, privatekey, keyrr, comment
		FROM DnssecKeyStore WHERE zonename = ? ORDER BY id ASC`, zone)
	if err != nil {
		return nil, fmt.Errorf("keystore: querying keys for %s: %w", zone, err)
	}
	defer rows.Close()

	var out []DnssecKey
	for rows.Next() {
		var k DnssecKey
		var state string
		if err := rows.Scan(&k.ZoneName, &state, &k.KeyID, &k.Flags, &k.Algorithm, &k.Creator, &k.PrivateKey, &k.KeyRR, &k.Comment); err != nil {
			return nil, fmt.Errorf("keystore: scanning key row: %w", err)
		}
		k.State = KeyState(state)
		out = append(out, k)
	}
	return out, rows.Err()
}

// SetKeyState transitions a key's lifecycle state, backing
// Rollover/RetireDnsKey.
func (s *Store) SetKeyState(zone string, keyID uint16, state KeyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE DnssecKeyStore SET state = ? WHERE zonename = ? AND keyid = ?`,
		string(state), zone, keyID)
	if err != nil {
		return fmt.Errorf("keystore: updating key state for %s/%d: %w", zone, keyID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("keystore: no key %d stored for zone %s", keyID, zone)
	}
	return nil
}

// DeleteKey removes a key row entirely, backing DeleteDnsKey.
func (s *Store) DeleteKey(zone string, keyID uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM DnssecKeyStore WHERE zonename = ? AND keyid = ?`, zone, keyID)
	if err != nil {
		return fmt.Errorf("keystore: deleting key %d for %s: %w", keyID, zone, err)
	}
	return nil
}

// DeleteZoneKeys removes every key row for zone, called from
// ZoneManager.DeleteZone ("releases signer material").
func (s *Store) DeleteZoneKeys(zone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM DnssecKeyStore WHERE zonename = ?`, zone)
	return err
}

// IndexJournalPosition records where in a zone's on-disk journal the diff
// sequence bounded by [oldSerial, newSerial] lives, so the IXFR
// producer can seek straight to it instead of scanning.
func (s *Store) IndexJournalPosition(zone string, oldSerial, newSerial uint32, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO JournalIndex (zonename, oldserial, newserial, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(zonename, oldserial) DO UPDATE SET newserial=excluded.newserial, position=excluded.position`,
		zone, oldSerial, newSerial, position)
	if err != nil {
		return fmt.Errorf("keystore: indexing journal position for %s: %w", zone, err)
	}
	return nil
}

// JournalPosition looks up the byte offset of the sequence starting at
// oldSerial for zone, if one was recorded.
func (s *Store) JournalPosition(zone string, oldSerial uint32) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pos int64
	err := s.db.QueryRow(`SELECT position FROM JournalIndex WHERE zonename = ? AND oldserial = ?`,
		zone, oldSerial).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("keystore: looking up journal position for %s/%d: %w", zone, oldSerial, err)
	}
	return pos, true, nil
}
