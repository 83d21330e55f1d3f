// Package netconf issues single-shot NETCONF operations against the managed
// device. Each call opens its own SSH session and closes it afterwards.
package netconf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	junos "github.com/Juniper/go-netconf/netconf"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
	"github.com/ccie14023/cataspark/internal/logging"
	"github.com/ccie14023/cataspark/internal/ssh/sshclient"
)

const (
	// DefaultPort is the IANA NETCONF-over-SSH port.
	DefaultPort = 830

	validateCapability = ":validate"
)

// Config describes how to reach the device.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	KnownHostsPath string
	Timeout        time.Duration
	Logger         *zerolog.Logger
}

// session is the subset of *netconf.Session the client uses.
type session interface {
	Exec(methods ...junos.RPCMethod) (*junos.RPCReply, error)
	Capabilities() []string
	Close() error
}

type sshSession struct {
	*junos.Session
}

func (s sshSession) Capabilities() []string {
	return s.ServerCapabilities
}

type dialFunc func(target string, cfg *ssh.ClientConfig) (session, error)

func dialSSH(target string, cfg *ssh.ClientConfig) (session, error) {
	s, err := junos.DialSSH(target, cfg)
	if err != nil {
		return nil, err
	}
	return sshSession{s}, nil
}

// Client runs NETCONF get and edit-config operations.
type Client struct {
	cfg    Config
	logger zerolog.Logger
	dial   dialFunc
}

// New returns a Client for cfg.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("netconf: host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "netconf").Str("host", cfg.Host).Logger(),
		dial:   dialSSH,
	}, nil
}

// Query issues a subtree-filtered <get> and returns the raw rpc-reply XML.
func (c *Client) Query(ctx context.Context, filter string) (string, error) {
	reply, err := c.exec(ctx, "get", getRPC(filter))
	if err != nil {
		return "", err
	}
	return "<rpc-reply>" + reply.Data + "</rpc-reply>", nil
}

// Apply pushes snippet to the running datastore with test-then-set.
// Any rpc-error in the reply fails the call.
func (c *Client) Apply(ctx context.Context, snippet string) error {
	_, err := c.exec(ctx, "edit-config", editConfigRPC(snippet))
	return err
}

func (c *Client) exec(ctx context.Context, op, rpc string) (*junos.RPCReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, cserrors.WrapTransportError(op, c.cfg.Host, err)
	}

	sshCfg, err := sshclient.ClientConfig(sshclient.Credentials{
		Username:       c.cfg.Username,
		Password:       c.cfg.Password,
		KnownHostsPath: c.cfg.KnownHostsPath,
		Timeout:        c.cfg.Timeout,
	})
	if err != nil {
		return nil, cserrors.WrapTransportError(op, c.cfg.Host, err)
	}

	target := sshclient.Address(c.cfg.Host, c.cfg.Port, DefaultPort)
	c.logger.Debug().
		Str("request_id", logging.RequestID(ctx)).
		Str("op", op).
		Str("target", target).
		Msg("Opening NETCONF session")

	s, err := c.dial(target, sshCfg)
	if err != nil {
		return nil, cserrors.WrapTransportError(op, c.cfg.Host, fmt.Errorf("dial %s: %w", target, err))
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()
	defer func() {
		if err := s.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Closing NETCONF session")
		}
	}()

	if !hasCapability(s.Capabilities(), validateCapability) {
		return nil, cserrors.WrapTransportError(op, c.cfg.Host,
			fmt.Errorf("%w: %s", cserrors.ErrCapabilityMissing, validateCapability))
	}

	reply, err := s.Exec(junos.RawMethod(rpc))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return nil, cserrors.WrapTransportError(op, c.cfg.Host, err)
	}
	if reply == nil {
		return nil, cserrors.WrapStructuralError(op, c.cfg.Host, errors.New("empty reply"))
	}
	return reply, nil
}

// hasCapability matches shorthand names such as ":validate" against the full
// capability URNs a server advertises, with or without a version suffix.
func hasCapability(caps []string, name string) bool {
	for _, c := range caps {
		c = strings.TrimSpace(c)
		if i := strings.IndexByte(c, '?'); i >= 0 {
			c = c[:i]
		}
		if c == name || strings.HasSuffix(c, name) || strings.Contains(c, name+":") {
			return true
		}
	}
	return false
}
