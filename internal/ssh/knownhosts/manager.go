package knownhosts

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	xknownhosts "golang.org/x/crypto/ssh/knownhosts"
)

// Manager verifies device host keys against a managed known_hosts file.
// Unknown hosts are trusted on first use and appended; a changed key is
// rejected with a HostKeyChangeError.
type Manager interface {
	// HostKeyCallback returns a callback suitable for ssh.ClientConfig.
	HostKeyCallback() ssh.HostKeyCallback
	// Path returns the absolute path to the managed known_hosts file.
	Path() string
}

type manager struct {
	path string
	mu   sync.Mutex
}

var (
	mkdirAllFn       = os.MkdirAll
	openFileFn       = os.OpenFile
	appendOpenFileFn = func(path string) (io.WriteCloser, error) {
		return openFileFn(path, os.O_APPEND|os.O_WRONLY, 0o600)
	}

	// ErrHostKeyChanged signals that a host key already exists with a different fingerprint.
	ErrHostKeyChanged = errors.New("knownhosts: host key changed")
)

// HostKeyChangeError describes a detected host key mismatch.
type HostKeyChangeError struct {
	Host     string
	Existing string
	Provided string
}

func (e *HostKeyChangeError) Error() string {
	return fmt.Sprintf("knownhosts: host key for %s changed", e.Host)
}

func (e *HostKeyChangeError) Unwrap() error {
	return ErrHostKeyChanged
}

// NewManager returns a Manager backed by the supplied known_hosts path,
// creating the file if it does not exist.
func NewManager(path string) (Manager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("knownhosts: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("knownhosts: resolve %s: %w", path, err)
	}

	m := &manager{path: abs}
	if err := m.ensureKnownHostsFile(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *manager) Path() string {
	return m.path
}

func (m *manager) HostKeyCallback() ssh.HostKeyCallback {
	return m.check
}

func (m *manager) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-read on every call so manual edits take effect without a restart.
	callback, err := xknownhosts.New(m.path)
	if err != nil {
		return fmt.Errorf("knownhosts: load %s: %w", m.path, err)
	}

	err = callback(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *xknownhosts.KeyError
	if !errors.As(err, &keyErr) {
		return err
	}

	if len(keyErr.Want) > 0 {
		existing := keyErr.Want[0]
		return &HostKeyChangeError{
			Host:     hostname,
			Existing: ssh.FingerprintSHA256(existing.Key),
			Provided: ssh.FingerprintSHA256(key),
		}
	}

	line := xknownhosts.Line([]string{xknownhosts.Normalize(hostname)}, key)
	if err := m.appendLine(line); err != nil {
		return err
	}
	log.Info().
		Str("host", hostname).
		Str("fingerprint", ssh.FingerprintSHA256(key)).
		Str("known_hosts", m.path).
		Msg("Trusted new device host key")
	return nil
}

func (m *manager) appendLine(line string) error {
	f, err := appendOpenFileFn(m.path)
	if err != nil {
		return fmt.Errorf("knownhosts: open %s for append: %w", m.path, err)
	}
	if _, err := io.WriteString(f, line+"\n"); err != nil {
		f.Close()
		return fmt.Errorf("knownhosts: append to %s: %w", m.path, err)
	}
	return f.Close()
}

func (m *manager) ensureKnownHostsFile() error {
	if err := mkdirAllFn(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("knownhosts: mkdir %s: %w", filepath.Dir(m.path), err)
	}
	f, err := openFileFn(m.path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return fmt.Errorf("knownhosts: create %s: %w", m.path, err)
	}
	return f.Close()
}
