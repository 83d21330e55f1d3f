package main

import (
	"context"
	"fmt"

	"github.com/ccie14023/cataspark/internal/config"
	"github.com/ccie14023/cataspark/internal/dropbox"
	"github.com/ccie14023/cataspark/internal/graph"
	"github.com/ccie14023/cataspark/internal/netconf"
	"github.com/ccie14023/cataspark/internal/shell"
	"github.com/ccie14023/cataspark/internal/webex"
)

// webexClient builds a chat client for one of the two configured tokens.
func webexClient(cfg *config.Config, token string) (*webex.Client, error) {
	return webex.New(webex.Config{
		BaseURL:            cfg.Webex.BaseURL,
		Token:              token,
		Fingerprint:        cfg.Webex.Fingerprint,
		InsecureSkipVerify: cfg.Webex.InsecureSkipVerify,
		Timeout:            cfg.Webex.Timeout,
	})
}

// resolveRoom looks the configured room title up with the user identity.
func resolveRoom(ctx context.Context, user *webex.Client, title string) (string, error) {
	id, err := user.ResolveRoom(ctx, title)
	if err != nil {
		return "", fmt.Errorf("resolve room %q: %w", title, err)
	}
	if id == "" {
		return "", fmt.Errorf("room %q not found; create it with 'cataspark room create'", title)
	}
	return id, nil
}

func netconfDevice(cfg *config.Config) (*netconf.Device, error) {
	client, err := netconf.New(netconf.Config{
		Host:           cfg.Device.Host,
		Port:           cfg.Device.NetconfPort,
		Username:       cfg.Device.Username,
		Password:       cfg.Device.Password,
		KnownHostsPath: cfg.Device.KnownHostsPath,
		Timeout:        cfg.Device.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return netconf.NewDevice(client), nil
}

func shellToggler(cfg *config.Config) *shell.Toggler {
	return shell.New(shell.Config{
		Host:           cfg.Device.Host,
		Port:           cfg.Device.SSHPort,
		Username:       cfg.Device.Username,
		Password:       cfg.Device.Password,
		KnownHostsPath: cfg.Device.KnownHostsPath,
		Timeout:        cfg.Device.ShellTimeout,
	})
}

func graphRenderer(cfg *config.Config) *graph.Renderer {
	return graph.NewRenderer(graph.Config{
		Dir:     cfg.Bot.GraphDir,
		DotPath: cfg.Bot.DotPath,
	})
}

func dropboxUploader(cfg *config.Config) (*dropbox.Uploader, error) {
	return dropbox.New(dropbox.Config{
		Token:  cfg.Dropbox.Token,
		Prefix: cfg.Dropbox.Prefix,
	})
}
