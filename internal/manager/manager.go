// Package manager implements the zone manager: zone lifecycle
// (create/delete/convert/clone), the admin-facing sorted zone index, and
// the debounced disk save loop. Everything lives on one manager object
// rather than package-level globals, since a library-shaped core should
// not own process-global state.
package manager

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/stenstam/zonecore/internal/keystore"
	"github.com/stenstam/zonecore/internal/logging"
	"github.com/stenstam/zonecore/internal/zone"
)

// SaveDebounce is the batching window for the single save timer.
const SaveDebounce = 10 * time.Second

// ZoneInfo is the admin-facing metadata snapshot for one zone, held in
// the manager's sorted index.
type ZoneInfo struct {
	Name         string
	Type         zone.ZoneType
	Disabled     bool
	Dnssec       zone.DnssecStatus
	LastModified time.Time
}

func infoOf(z *zone.ApexZone) ZoneInfo {
	return ZoneInfo{
		Name:         z.Name.String(),
		Type:         z.Type,
		Disabled:     z.Disabled,
		Dnssec:       z.Dnssec,
		LastModified: z.LastModified,
	}
}

// internalZoneNames are never persisted to disk (localhost and the RFC
// 6761 reverse zones).
var internalZoneNames = map[string]bool{
	"localhost.":             true,
	"127.in-addr.arpa.":      true,
	"0.in-addr.arpa.":        true,
	"255.in-addr.arpa.":      true,
	"1.0.0.127.in-addr.arpa.": true,
	"0.in-addr.arpa.local.":  true,
}

// IsInternalZone reports whether name is one of the never-persisted
// system zones.
func IsInternalZone(name string) bool {
	return internalZoneNames[zone.NewName(name).Key()]
}

// Manager owns the shared registry/tree, the sorted zone index, and the
// debounced save loop. indexMu protects the zone index; pendingMu guards
// only the save-pending set. The two lock domains never nest.
type Manager struct {
	Registry *zone.Registry

	zonesDir string
	keys     *keystore.Store
	log      logging.Sink

	indexMu sync.RWMutex
	index   map[string]ZoneInfo

	pendingMu sync.Mutex
	pending   map[string]bool
	saveTimer *time.Timer
	disposed  bool
}

// New constructs a Manager persisting zone files under zonesDir and
// DNSSEC key material in keys. keys may be nil if this process never
// signs zones.
func New(zonesDir string, keys *keystore.Store, log logging.Sink) *Manager {
	if log == nil {
		log = logging.StdSink{}
	}
	return &Manager{
		Registry: zone.NewRegistry(),
		zonesDir: zonesDir,
		keys:     keys,
		log:      log,
		index:    map[string]ZoneInfo{},
		pending:  map[string]bool{},
	}
}

func (m *Manager) putIndex(z *zone.ApexZone) {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	m.index[z.Name.Key()] = infoOf(z)
}

func (m *Manager) removeIndex(name zone.Name) {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	delete(m.index, name.Key())
}

func (m *Manager) refreshIndex(z *zone.ApexZone) { m.putIndex(z) }

// GetAllZones returns every zone's info, lexicographically sorted by
// name.
func (m *Manager) GetAllZones() []ZoneInfo {
	m.indexMu.RLock()
	defer m.indexMu.RUnlock()
	keys := maps.Keys(m.index)
	sort.Strings(keys)
	out := make([]ZoneInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.index[k])
	}
	return out
}

// GetZonesPage returns a sorted slice of the index starting at offset,
// at most limit entries, for paginated admin listing.
func (m *Manager) GetZonesPage(offset, limit int) []ZoneInfo {
	all := m.GetAllZones()
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// zoneFilePath maps a zone name to
// "<zonesDir>/<lowercase-zone-name>.zone"; the root zone is stored as
// ".zone".
func (m *Manager) zoneFilePath(name zone.Name) string {
	fname := strings.TrimSuffix(name.Key(), ".")
	return fmt.Sprintf("%s/%s.zone", m.zonesDir, fname)
}

// lookup finds an apex by name or returns a ZoneNotFound error, the
// choke point every admin mutator below goes through.
func (m *Manager) lookup(name string) (*zone.ApexZone, error) {
	n := zone.NewName(name)
	z, ok := m.Registry.Get(n)
	if !ok {
		return nil, &zone.Error{Kind: zone.KindZoneNotFound, Zone: name, Msg: "no such zone"}
	}
	return z, nil
}
