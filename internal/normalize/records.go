package normalize

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
)

// Placeholder is what TopByMetric reports when it has nothing to rank.
const Placeholder = "NETCONF error"

// ProcessStat is one process with a single integer metric (CPU run time or
// allocated memory).
type ProcessStat struct {
	Name  string
	Value int64
}

// Route is a destination prefix and its forwarding next hop.
type Route struct {
	Prefix            string
	NextHopAddress    string
	OutgoingInterface string
}

// NextHop returns the next-hop address, falling back to the egress interface.
func (r Route) NextHop() string {
	if r.NextHopAddress != "" {
		return r.NextHopAddress
	}
	return r.OutgoingInterface
}

// FormatRoute renders a route as "{prefix}-->{next_hop}".
func FormatRoute(r Route) string {
	return fmt.Sprintf("%s-->%s", r.Prefix, r.NextHop())
}

// BGPNeighbor is a BGP peer as listed by the neighbor table.
type BGPNeighbor struct {
	ID    string
	State string
}

// CPUProcesses decodes the CPU usage reply, ranked by total run time.
func CPUProcesses(doc *etree.Document) ([]ProcessStat, error) {
	return processStats(doc, CPUProcessPath, "total-run-time")
}

// MemoryProcesses decodes the memory usage reply, ranked by allocated memory.
func MemoryProcesses(doc *etree.Document) ([]ProcessStat, error) {
	return processStats(doc, MemoryProcessPath, "allocated-memory")
}

func processStats(doc *etree.Document, path Path, metric string) ([]ProcessStat, error) {
	elements, err := Extract(doc, path)
	if err != nil {
		return nil, err
	}

	stats := make([]ProcessStat, 0, len(elements))
	for _, el := range elements {
		name, ok := Field(el, "name")
		if !ok {
			return nil, cserrors.Mismatchf("process without name")
		}
		raw, ok := Field(el, metric)
		if !ok {
			return nil, cserrors.Mismatchf("process %q without %s", name, metric)
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, cserrors.Mismatchf("process %q: %s %q is not an integer", name, metric, raw)
		}
		stats = append(stats, ProcessStat{Name: name, Value: value})
	}
	return stats, nil
}

// TopByMetric returns the name of the record with the largest value. Ties
// keep the first maximum seen. Empty input yields Placeholder.
func TopByMetric(stats []ProcessStat) string {
	if len(stats) == 0 {
		return Placeholder
	}
	top := stats[0]
	for _, s := range stats[1:] {
		if s.Value > top.Value {
			top = s
		}
	}
	return top.Name
}

// BGPNeighbors decodes the neighbor list reply.
func BGPNeighbors(doc *etree.Document) ([]BGPNeighbor, error) {
	elements, err := Extract(doc, BGPNeighborPath)
	if err != nil {
		return nil, err
	}

	neighbors := make([]BGPNeighbor, 0, len(elements))
	for _, el := range elements {
		id, ok := Field(el, "neighbor-id")
		if !ok {
			return nil, cserrors.Mismatchf("neighbor without neighbor-id")
		}
		state, _ := Field(el, "connection/state")
		neighbors = append(neighbors, BGPNeighbor{ID: id, State: state})
	}
	return neighbors, nil
}

// BGPNeighborState finds the summary whose id equals ip and returns its state.
func BGPNeighborState(doc *etree.Document, ip string) (string, error) {
	elements, err := Extract(doc, BGPNeighborSummaryPath)
	if err != nil {
		return "", err
	}
	for _, el := range elements {
		if id, _ := Field(el, "id"); id != ip {
			continue
		}
		state, ok := Field(el, "state")
		if !ok {
			return "", cserrors.Mismatchf("neighbor %s summary without state", ip)
		}
		return state, nil
	}
	return "", cserrors.Mismatchf("no summary for neighbor %s", ip)
}

// Routes decodes the IETF routing-state reply.
func Routes(doc *etree.Document) ([]Route, error) {
	elements, err := Extract(doc, RoutePath)
	if err != nil {
		return nil, err
	}

	routes := make([]Route, 0, len(elements))
	for _, el := range elements {
		prefix, ok := Field(el, "destination-prefix")
		if !ok {
			return nil, cserrors.Mismatchf("route without destination-prefix")
		}
		r := Route{Prefix: prefix}
		if addr, ok := Field(el, "next-hop/next-hop-address"); ok {
			r.NextHopAddress = addr
		} else if iface, ok := Field(el, "next-hop/outgoing-interface"); ok {
			r.OutgoingInterface = iface
		} else {
			return nil, cserrors.Mismatchf("route %s without next hop", prefix)
		}
		routes = append(routes, r)
	}
	return routes, nil
}
