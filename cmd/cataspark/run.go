package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ccie14023/cataspark/internal/bot"
	"github.com/ccie14023/cataspark/internal/config"
	"github.com/ccie14023/cataspark/internal/logging"
	"github.com/ccie14023/cataspark/pkg/tlsutil"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the room and answer commands until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		defer logging.Shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBot(ctx, cfg)
	},
}

// runBot wires every collaborator and runs the poll loop alongside the
// metrics endpoint and the config watcher until ctx ends.
func runBot(ctx context.Context, cfg *config.Config) error {
	user, err := webexClient(cfg, cfg.Webex.UserToken)
	if err != nil {
		return fmt.Errorf("user chat client: %w", err)
	}
	poster, err := webexClient(cfg, cfg.Webex.BotToken)
	if err != nil {
		return fmt.Errorf("bot chat client: %w", err)
	}
	device, err := netconfDevice(cfg)
	if err != nil {
		return err
	}
	uploader, err := dropboxUploader(cfg)
	if err != nil {
		return err
	}

	roomID, err := resolveRoom(ctx, user, cfg.Webex.Room)
	if err != nil {
		return err
	}

	b, err := bot.New(bot.Config{
		RoomID:   roomID,
		ASN:      cfg.Bot.ASN,
		Interval: cfg.Bot.PollInterval,
		Reader:   user,
		Poster:   poster,
		Device:   device,
		Toggler:  shellToggler(cfg),
		Renderer: graphRenderer(cfg),
		Uploader: uploader,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("version", Version).
		Str("room", cfg.Webex.Room).
		Str("device", cfg.Device.Host).
		Msg("Starting cataspark")

	g, gctx := errgroup.WithContext(ctx)
	tlsutil.StartDNSRefresher(gctx)

	g.Go(func() error {
		return b.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr)
		})
	}

	watcher := config.NewWatcher(cfg, func(next *config.Config) {
		logging.SetLevel(next.Logging.Level)
		log.Info().Str("level", next.Logging.Level).Msg("Applied reloaded log level")
	})
	g.Go(func() error {
		return watcher.Run(gctx)
	})

	err = g.Wait()
	log.Info().Msg("cataspark stopped")
	return err
}
