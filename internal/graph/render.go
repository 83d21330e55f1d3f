// Package graph draws the routing table as a left-to-right digraph with one
// node per prefix or next hop and one edge per route.
package graph

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/awalterschulze/gographviz"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ccie14023/cataspark/internal/normalize"
)

const (
	graphName = "G"

	// FileSuffix follows the timestamp in every rendered file name.
	FileSuffix = "-route_graph.png"

	timestampLayout = "20060102-150405"
)

// Build returns the DOT graph for routes. Node IDs are always quoted since
// DOT would otherwise split a dotted-quad next hop into number tokens.
func Build(routes []normalize.Route) (*gographviz.Graph, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return nil, err
	}
	if err := g.SetDir(true); err != nil {
		return nil, err
	}
	if err := g.AddAttr(graphName, "rankdir", "LR"); err != nil {
		return nil, err
	}

	for _, r := range routes {
		hop := r.NextHop()
		if r.Prefix == "" || hop == "" {
			return nil, fmt.Errorf("graph: route %q has no next hop", r.Prefix)
		}
		src, dst := strconv.Quote(r.Prefix), strconv.Quote(hop)
		for _, id := range []string{src, dst} {
			if !g.IsNode(id) {
				if err := g.AddNode(graphName, id, nil); err != nil {
					return nil, err
				}
			}
		}
		if err := g.AddEdge(src, dst, true, nil); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// FileName returns the timestamped PNG name for t.
func FileName(t time.Time) string {
	return t.Format(timestampLayout) + FileSuffix
}

// Runner executes the layout engine, reading DOT from stdin.
type Runner func(ctx context.Context, dotPath string, args []string, stdin []byte) ([]byte, error)

func runDot(ctx context.Context, dotPath string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, dotPath, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Config configures a Renderer.
type Config struct {
	// Dir receives rendered files. Empty means the working directory.
	Dir string
	// DotPath is the Graphviz executable. Empty means "dot" on PATH.
	DotPath string
	Logger  *zerolog.Logger
}

// Renderer writes route diagrams to PNG files.
type Renderer struct {
	dir     string
	dotPath string
	run     Runner
	now     func() time.Time
	logger  zerolog.Logger
}

// NewRenderer returns a Renderer that shells out to Graphviz.
func NewRenderer(cfg Config) *Renderer {
	dotPath := cfg.DotPath
	if dotPath == "" {
		dotPath = "dot"
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Renderer{
		dir:     cfg.Dir,
		dotPath: dotPath,
		run:     runDot,
		now:     time.Now,
		logger:  logger.With().Str("component", "graph").Logger(),
	}
}

// Render draws routes and returns the path of the written PNG.
func (r *Renderer) Render(ctx context.Context, routes []normalize.Route) (string, error) {
	g, err := Build(routes)
	if err != nil {
		return "", err
	}

	png, err := r.run(ctx, r.dotPath, []string{"-Tpng"}, []byte(g.String()))
	if err != nil {
		return "", fmt.Errorf("graph: render with %s: %w", r.dotPath, err)
	}

	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return "", fmt.Errorf("graph: create %s: %w", r.dir, err)
		}
	}
	path := filepath.Join(r.dir, FileName(r.now()))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("graph: write %s: %w", path, err)
	}

	r.logger.Debug().Str("path", path).Int("routes", len(routes)).Int("bytes", len(png)).Msg("Rendered route graph")
	return path, nil
}
