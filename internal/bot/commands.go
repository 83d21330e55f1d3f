package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/ccie14023/cataspark/internal/normalize"
	"github.com/ccie14023/cataspark/internal/shell"
)

// Reply text posted to the room.
const (
	PingReply          = "Ping response"
	CPUWaitNotice      = "Please wait while I calculate the top CPU process.  This may take a minute."
	MemoryWaitNotice   = "Please wait while I calculate the top memory process.  This may take a minute."
	GraphCaption       = "Routing Table Graph"
	netconfError       = "NETCONF error"
	netconfErrorPeriod = "NETCONF error."
)

var ipv4Pattern = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)

// extractIPv4 returns the first IPv4-looking substring of text, or "".
func extractIPv4(text string) string {
	return ipv4Pattern.FindString(text)
}

type command struct {
	name string
	// pattern is matched against the lower-cased message with wildcard
	// semantics; patterns without '*' must match the whole message.
	pattern string
	needsIP bool
	handle  func(b *Bot, d *dispatch)
}

// commands is evaluated in order; the first match wins.
var commands = []command{
	{name: "ping", pattern: "ping", handle: (*Bot).ping},
	{name: "top_cpu", pattern: "show the top cpu process", handle: (*Bot).topCPU},
	{name: "top_memory", pattern: "show the top memory process", handle: (*Bot).topMemory},
	{name: "bgp_neighbors", pattern: "show the bgp neighbors", handle: (*Bot).bgpNeighbors},
	{name: "bgp_state", pattern: "*show the bgp state*", needsIP: true, handle: (*Bot).bgpState},
	{name: "routing_table", pattern: "show the routing table", handle: (*Bot).routingTable},
	{name: "bgp_disable", pattern: "*disable bgp neighbor*", needsIP: true, handle: (*Bot).bgpDisable},
	{name: "bgp_enable", pattern: "*enable bgp neighbor*", needsIP: true, handle: (*Bot).bgpEnable},
	{name: "graph_routes", pattern: "graph the routing table", handle: (*Bot).graphRoutes},
}

// match returns the first command whose pattern matches text and the IPv4
// address text carries. Only the first textual match is considered: when it
// needs an address and text holds none, nothing matches.
func match(text string) (*command, string) {
	lowered := strings.ToLower(text)
	ip := extractIPv4(text)
	for i := range commands {
		cmd := &commands[i]
		if !wildcard.Match(cmd.pattern, lowered) {
			continue
		}
		if cmd.needsIP && ip == "" {
			return nil, ""
		}
		return cmd, ip
	}
	return nil, ""
}

func (b *Bot) ping(d *dispatch) {
	d.post(PingReply)
}

func (b *Bot) topCPU(d *dispatch) {
	d.post(CPUWaitNotice)
	stats, err := b.device.CPUProcesses(d.ctx)
	if err != nil {
		d.fail(err, "CPU process query failed")
	}
	d.post(fmt.Sprintf(`The top CPU process by total run time is "%s".`, normalize.TopByMetric(stats)))
}

func (b *Bot) topMemory(d *dispatch) {
	d.post(MemoryWaitNotice)
	stats, err := b.device.MemoryProcesses(d.ctx)
	if err != nil {
		d.fail(err, "Memory process query failed")
	}
	d.post(fmt.Sprintf(`The top memory process is "%s".`, normalize.TopByMetric(stats)))
}

func (b *Bot) bgpNeighbors(d *dispatch) {
	neighbors, err := b.device.BGPNeighbors(d.ctx)
	if err != nil || len(neighbors) == 0 {
		d.fail(err, "BGP neighbor query returned nothing")
		d.post(netconfError)
		return
	}
	for _, n := range neighbors {
		d.post(n.ID)
	}
}

func (b *Bot) bgpState(d *dispatch) {
	state, err := b.device.BGPNeighborState(d.ctx, d.ip)
	if err != nil || state == "" {
		d.fail(err, "BGP neighbor state query failed")
		d.post(netconfErrorPeriod)
		return
	}
	d.post(fmt.Sprintf("The BGP state for neighbor %s is %s.", d.ip, state))
}

func (b *Bot) routingTable(d *dispatch) {
	routes, err := b.device.Routes(d.ctx)
	if err != nil || len(routes) == 0 {
		// Logged only; nothing is posted for this command.
		d.fail(err, netconfErrorPeriod)
		return
	}
	for _, r := range routes {
		d.post(normalize.FormatRoute(r))
	}
}

func (b *Bot) bgpDisable(d *dispatch) {
	b.toggle(d, shell.Down, "DOWN")
}

func (b *Bot) bgpEnable(d *dispatch) {
	b.toggle(d, shell.Up, "UP")
}

func (b *Bot) toggle(d *dispatch, dir shell.Direction, label string) {
	if err := b.toggler.Toggle(d.ctx, dir, d.ip, b.asn); err != nil {
		d.fail(err, "BGP neighbor toggle failed")
		d.post(netconfErrorPeriod)
		return
	}
	d.post(fmt.Sprintf("BGP neighbor %s set to %s.", d.ip, label))
}

func (b *Bot) graphRoutes(d *dispatch) {
	link, err := b.renderAndUpload(d.ctx)
	if err != nil {
		d.fail(err, "Routing table graph failed")
		d.post(netconfErrorPeriod)
		return
	}
	d.postImage(GraphCaption, link)
}

func (b *Bot) renderAndUpload(ctx context.Context) (string, error) {
	routes, err := b.device.Routes(ctx)
	if err != nil {
		return "", err
	}
	if len(routes) == 0 {
		return "", fmt.Errorf("no routes to graph")
	}
	path, err := b.renderer.Render(ctx, routes)
	if err != nil {
		return "", err
	}
	return b.uploader.Upload(ctx, path, "")
}
