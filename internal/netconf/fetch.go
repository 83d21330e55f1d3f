package netconf

import (
	"context"
	"time"

	"github.com/beevik/etree"

	"github.com/ccie14023/cataspark/internal/metrics"
	"github.com/ccie14023/cataspark/internal/normalize"
)

// Querier is satisfied by *Client.
type Querier interface {
	Query(ctx context.Context, filter string) (string, error)
	Apply(ctx context.Context, snippet string) error
}

// Device combines queries with the normalizer into typed fetchers.
type Device struct {
	q Querier
}

// NewDevice wraps q.
func NewDevice(q Querier) *Device {
	return &Device{q: q}
}

func (d *Device) fetch(ctx context.Context, filter string) (*etree.Document, error) {
	raw, err := d.q.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return normalize.Parse(raw)
}

// CPUProcesses returns every process with its total run time.
func (d *Device) CPUProcesses(ctx context.Context) (stats []normalize.ProcessStat, err error) {
	defer record("cpu_processes", time.Now(), &err)
	doc, err := d.fetch(ctx, GetCPUProcesses)
	if err != nil {
		return nil, err
	}
	return normalize.CPUProcesses(doc)
}

// MemoryProcesses returns every process with its allocated memory.
func (d *Device) MemoryProcesses(ctx context.Context) (stats []normalize.ProcessStat, err error) {
	defer record("memory_processes", time.Now(), &err)
	doc, err := d.fetch(ctx, GetMemoryProcesses)
	if err != nil {
		return nil, err
	}
	return normalize.MemoryProcesses(doc)
}

// BGPNeighbors lists the configured BGP peers.
func (d *Device) BGPNeighbors(ctx context.Context) (neighbors []normalize.BGPNeighbor, err error) {
	defer record("bgp_neighbors", time.Now(), &err)
	doc, err := d.fetch(ctx, GetBGPNeighbors)
	if err != nil {
		return nil, err
	}
	return normalize.BGPNeighbors(doc)
}

// BGPNeighborState reads the session state of a single peer from the
// per-address-family neighbor summaries. This uses a wider filter than
// BGPNeighbors and a different reply shape.
func (d *Device) BGPNeighborState(ctx context.Context, ip string) (state string, err error) {
	defer record("bgp_neighbor_state", time.Now(), &err)
	doc, err := d.fetch(ctx, GetBGPNeighbor)
	if err != nil {
		return "", err
	}
	return normalize.BGPNeighborState(doc, ip)
}

// Routes returns the default instance's first RIB.
func (d *Device) Routes(ctx context.Context) (routes []normalize.Route, err error) {
	defer record("routes", time.Now(), &err)
	doc, err := d.fetch(ctx, IETFGetRoutes)
	if err != nil {
		return nil, err
	}
	return normalize.Routes(doc)
}

// ShutdownBGP administratively shuts down the BGP process asn.
func (d *Device) ShutdownBGP(ctx context.Context, asn string) (err error) {
	defer record("bgp_shutdown", time.Now(), &err)
	return d.q.Apply(ctx, SetBGPDown(asn))
}

func record(query string, started time.Time, err *error) {
	metrics.RecordDeviceQuery(query, started, *err)
}
