// Package shell drives the device CLI over an interactive SSH session to
// enable or disable a BGP neighbor.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	expect "github.com/google/goexpect"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
	"github.com/ccie14023/cataspark/internal/logging"
	"github.com/ccie14023/cataspark/internal/metrics"
	"github.com/ccie14023/cataspark/internal/ssh/sshclient"
)

// Direction selects whether the neighbor is shut down or brought back up.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

const (
	// DefaultPort is the device's SSH CLI port.
	DefaultPort = 22

	prompt = "#"
)

// Command returns the router-bgp subcommand for dir.
func Command(dir Direction, neighborIP string) string {
	if dir == Up {
		return fmt.Sprintf("no neighbor %s shutdown", neighborIP)
	}
	return fmt.Sprintf("neighbor %s shutdown", neighborIP)
}

// Script returns the expect/send batch for one toggle. Output after each
// prompt is not inspected.
func Script(dir Direction, neighborIP, asn string) []expect.Batcher {
	return []expect.Batcher{
		&expect.BExp{R: prompt},
		&expect.BSnd{S: "conf t\n"},
		&expect.BExp{R: prompt},
		&expect.BSnd{S: fmt.Sprintf("router bgp %s\n", asn)},
		&expect.BExp{R: prompt},
		&expect.BSnd{S: Command(dir, neighborIP) + "\n"},
		&expect.BExp{R: prompt},
		&expect.BSnd{S: "end\n"},
	}
}

// Spawner opens an interactive session on the device.
type Spawner func(ctx context.Context) (expect.Expecter, error)

// Config describes the device CLI endpoint.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	KnownHostsPath string
	// Timeout bounds each expect step. Zero uses the expect library default.
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// Toggler runs the BGP neighbor toggle script.
type Toggler struct {
	cfg    Config
	logger zerolog.Logger
	spawn  Spawner
}

// New returns a Toggler that spawns SSH sessions with cfg.
func New(cfg Config) *Toggler {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	t := &Toggler{
		cfg:    cfg,
		logger: logger.With().Str("component", "shell").Str("host", cfg.Host).Logger(),
	}
	t.spawn = t.spawnSSH
	return t
}

// NewWithSpawner returns a Toggler using spawn for its sessions.
func NewWithSpawner(cfg Config, spawn Spawner) *Toggler {
	t := New(cfg)
	t.spawn = spawn
	return t
}

// Toggle sets neighborIP under BGP process asn up or down. Success means the
// script ran to completion, not that the device accepted the command.
func (t *Toggler) Toggle(ctx context.Context, dir Direction, neighborIP, asn string) (err error) {
	defer func(started time.Time) {
		metrics.RecordDeviceQuery("bgp_toggle_"+string(dir), started, err)
	}(time.Now())

	if dir != Up && dir != Down {
		return fmt.Errorf("shell: unknown direction %q", dir)
	}
	if strings.TrimSpace(neighborIP) == "" {
		return fmt.Errorf("shell: neighbor address is required")
	}

	e, err := t.spawn(ctx)
	if err != nil {
		return cserrors.WrapTransportError("shell", t.cfg.Host, err)
	}
	var closeOnce sync.Once
	closeSession := func() { closeOnce.Do(func() { e.Close() }) }
	defer closeSession()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeSession()
		case <-done:
		}
	}()

	t.logger.Info().
		Str("request_id", logging.RequestID(ctx)).
		Str("neighbor", neighborIP).
		Str("asn", asn).
		Str("direction", string(dir)).
		Msg("Toggling BGP neighbor")

	if _, err := e.ExpectBatch(Script(dir, neighborIP, asn), t.batchTimeout()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cserrors.WrapTransportError("shell", t.cfg.Host, ctxErr)
		}
		return cserrors.WrapTransportError("shell", t.cfg.Host, err)
	}
	return nil
}

// batchTimeout maps an unset timeout to the session default. ExpectBatch
// treats zero as "do not wait".
func (t *Toggler) batchTimeout() time.Duration {
	if t.cfg.Timeout <= 0 {
		return -1
	}
	return t.cfg.Timeout
}

func (t *Toggler) spawnSSH(ctx context.Context) (expect.Expecter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sshCfg, err := sshclient.ClientConfig(sshclient.Credentials{
		Username:       t.cfg.Username,
		Password:       t.cfg.Password,
		KnownHostsPath: t.cfg.KnownHostsPath,
		Timeout:        t.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	addr := sshclient.Address(t.cfg.Host, t.cfg.Port, DefaultPort)
	client, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	e, _, err := expect.SpawnSSH(client, t.cfg.Timeout)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("spawn shell on %s: %w", addr, err)
	}
	return &sshExpecter{Expecter: e, client: client}, nil
}

// sshExpecter closes the underlying SSH connection with the session.
type sshExpecter struct {
	expect.Expecter
	client *ssh.Client
}

func (s *sshExpecter) Close() error {
	err := s.Expecter.Close()
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}
