package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/stenstam/zonecore/internal/logging"
	"github.com/stenstam/zonecore/internal/zone"
)

// TransferClient fetches zone data from an upstream primary. The wire
// side (dns.Transfer over TCP, SOA probes over UDP) belongs to the
// listener layer; the refresh engine only needs these two calls.
type TransferClient interface {
	// FetchSOA returns the upstream's current SOA serial.
	FetchSOA(ctx context.Context, zoneName, upstream string) (uint32, error)
	// FetchAXFR returns the upstream's full record list, SOA-framed.
	FetchAXFR(ctx context.Context, zoneName, upstream string) ([]dns.RR, error)
}

// Notifier delivers NOTIFY messages to a Primary zone's configured
// downstreams after a serial bump. Implementations must not block.
type Notifier interface {
	Notify(zoneName string, serial uint32, downstreams []string)
}

// DefaultTransferTimeout bounds a single refresh attempt against the
// upstream.
const DefaultTransferTimeout = 120 * time.Second

type refreshCounter struct {
	name       string
	curRefresh uint32
}

// Refresher drives the Secondary/Stub refresh state machine: a
// one-second ticker decrements a per-zone countdown seeded from the apex
// SOA refresh (or retry, after a failure), and an expired countdown
// triggers a transfer attempt. RefreshZone schedules an immediate
// attempt, which is how NOTIFY handling and zone creation hook in.
type Refresher struct {
	mgr      *Manager
	client   TransferClient
	log      logging.Sink
	counters cmap.ConcurrentMap[string, *refreshCounter]
	ch       chan string

	// TransferTimeout bounds one fetch attempt; zero means
	// DefaultTransferTimeout.
	TransferTimeout time.Duration
}

func NewRefresher(mgr *Manager, client TransferClient, log logging.Sink) *Refresher {
	if log == nil {
		log = logging.StdSink{}
	}
	return &Refresher{
		mgr:      mgr,
		client:   client,
		log:      log,
		counters: cmap.New[*refreshCounter](),
		ch:       make(chan string, 16),
	}
}

// RefreshZone schedules an immediate refresh attempt for name. Safe to
// call from any goroutine; a full channel drops the request (the ticker
// will get to the zone anyway).
func (r *Refresher) RefreshZone(name string) {
	select {
	case r.ch <- name:
	default:
	}
}

// Run loops until ctx is cancelled. It owns every timer-driven refresh;
// concurrent refreshes of one zone are suppressed by the zone's own
// refresh-in-progress flag.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case name := <-r.ch:
			r.attempt(ctx, zone.NewName(name))
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	for _, name := range r.mgr.Registry.Names() {
		az, ok := r.mgr.Registry.Get(zone.NewName(name))
		if !ok || (az.Type != zone.Secondary && az.Type != zone.Stub) || az.Disabled {
			continue
		}
		rc, ok := r.counters.Get(name)
		if !ok {
			refresh, _, _ := az.RefreshTimers()
			rc = &refreshCounter{name: name, curRefresh: refresh}
			r.counters.Set(name, rc)
			continue
		}
		if rc.curRefresh > 1 {
			rc.curRefresh--
			continue
		}
		r.attempt(ctx, az.Name)
	}
}

// attempt runs one refresh against the zone's upstream. On success the
// zone returns to Idle and the countdown is re-seeded from the SOA
// refresh value; on failure the countdown is re-seeded from retry, and
// the zone's own EndRefresh decides between Failed and Expired.
func (r *Refresher) attempt(ctx context.Context, name zone.Name) {
	az, ok := r.mgr.Registry.Get(name)
	if !ok || r.client == nil {
		return
	}
	if !az.BeginRefresh() {
		return // already refreshing
	}

	timeout := r.TransferTimeout
	if timeout == 0 {
		timeout = DefaultTransferTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := r.refreshOnce(attemptCtx, az)
	az.EndRefresh(err == nil)

	refresh, retry, _ := az.RefreshTimers()
	next := refresh
	if err != nil {
		next = retry
		r.log.WriteException(fmt.Errorf("refreshing zone %s from %s: %w", az.Name, az.Upstream, err))
	} else {
		r.mgr.refreshIndex(az)
		r.mgr.SaveZoneFile(az.Name.String())
	}
	r.counters.Set(name.Key(), &refreshCounter{name: name.Key(), curRefresh: next})
}

func (r *Refresher) refreshOnce(ctx context.Context, az *zone.ApexZone) error {
	serial, err := r.client.FetchSOA(ctx, az.Name.String(), az.Upstream)
	if err != nil {
		return err
	}
	if current := az.Serial(); current != 0 && !serialNewer(serial, current) {
		return nil // already current
	}
	records, err := r.client.FetchAXFR(ctx, az.Name.String(), az.Upstream)
	if err != nil {
		return err
	}
	return az.SyncZoneTransferRecords(records)
}

// serialNewer compares SOA serials in RFC 1982 sequence-space order.
func serialNewer(candidate, current uint32) bool {
	return candidate != current && (candidate-current) < 1<<31
}

// NotifyDownstreams fans a Primary zone's new serial out to its
// configured NOTIFY targets via n. A nil notifier is a no-op, so callers
// can invoke this unconditionally after a mutation.
func (m *Manager) NotifyDownstreams(name string, n Notifier) {
	if n == nil {
		return
	}
	az, err := m.lookup(name)
	if err != nil || az.Type != zone.Primary {
		return
	}
	downstreams := az.NotifyPolicy.Downstreams
	if len(downstreams) == 0 {
		return
	}
	n.Notify(az.Name.String(), az.Serial(), downstreams)
}
