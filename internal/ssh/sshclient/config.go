// Package sshclient builds SSH client configurations for device sessions.
package sshclient

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ccie14023/cataspark/internal/ssh/knownhosts"
)

// Credentials identify the bot to the device.
type Credentials struct {
	Username string
	Password string
	// KnownHostsPath enables host key verification. Empty disables it.
	KnownHostsPath string
	Timeout        time.Duration
}

// ClientConfig returns an ssh.ClientConfig using password and
// keyboard-interactive auth. Device images differ in which one they offer.
func ClientConfig(creds Credentials) (*ssh.ClientConfig, error) {
	if strings.TrimSpace(creds.Username) == "" {
		return nil, fmt.Errorf("sshclient: username is required")
	}

	callback := ssh.InsecureIgnoreHostKey()
	if creds.KnownHostsPath != "" {
		mgr, err := knownhosts.NewManager(creds.KnownHostsPath)
		if err != nil {
			return nil, err
		}
		callback = mgr.HostKeyCallback()
	}

	password := creds.Password
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: callback,
		Timeout:         creds.Timeout,
	}, nil
}

// Address joins host and port, defaulting the port when zero.
func Address(host string, port, defaultPort int) string {
	if port <= 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
