// Package bot runs the chat poll loop: it watches one room for a new top
// message, dispatches the first matching command, and posts the results.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
	"github.com/ccie14023/cataspark/internal/logging"
	"github.com/ccie14023/cataspark/internal/metrics"
	"github.com/ccie14023/cataspark/internal/normalize"
	"github.com/ccie14023/cataspark/internal/shell"
	"github.com/ccie14023/cataspark/internal/webex"
)

// DefaultInterval is the delay between polls.
const DefaultInterval = 5 * time.Second

// ChatReader lists a room's messages, newest first.
type ChatReader interface {
	ListMessages(ctx context.Context, roomID string) ([]webex.Message, error)
}

// ChatPoster posts replies to a room.
type ChatPoster interface {
	PostMessage(ctx context.Context, roomID, text string) (*webex.Message, error)
	PostMessageWithImage(ctx context.Context, roomID, text, imageURL string) (*webex.Message, error)
}

// Device answers the read-only queries.
type Device interface {
	CPUProcesses(ctx context.Context) ([]normalize.ProcessStat, error)
	MemoryProcesses(ctx context.Context) ([]normalize.ProcessStat, error)
	BGPNeighbors(ctx context.Context) ([]normalize.BGPNeighbor, error)
	BGPNeighborState(ctx context.Context, ip string) (string, error)
	Routes(ctx context.Context) ([]normalize.Route, error)
}

// Toggler shuts a BGP neighbor down or brings it back up.
type Toggler interface {
	Toggle(ctx context.Context, dir shell.Direction, neighborIP, asn string) error
}

// Renderer draws routes to an image file and returns its path.
type Renderer interface {
	Render(ctx context.Context, routes []normalize.Route) (string, error)
}

// Uploader publishes a local file and returns a directly renderable URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, remotePath string) (string, error)
}

// Config wires the bot to its collaborators. Reader and Poster usually hold
// different identities: a user account reads, the bot account posts.
type Config struct {
	RoomID   string
	ASN      string
	Interval time.Duration

	Reader   ChatReader
	Poster   ChatPoster
	Device   Device
	Toggler  Toggler
	Renderer Renderer
	Uploader Uploader

	Logger *zerolog.Logger
}

// Bot is the poll loop. It carries no state between polls beyond what Run
// threads through Poll.
type Bot struct {
	roomID   string
	asn      string
	interval time.Duration

	reader   ChatReader
	poster   ChatPoster
	device   Device
	toggler  Toggler
	renderer Renderer
	uploader Uploader

	logger zerolog.Logger
}

// New validates cfg and returns a Bot.
func New(cfg Config) (*Bot, error) {
	if cfg.RoomID == "" {
		return nil, fmt.Errorf("bot: room ID is required")
	}
	if cfg.Reader == nil || cfg.Poster == nil || cfg.Device == nil ||
		cfg.Toggler == nil || cfg.Renderer == nil || cfg.Uploader == nil {
		return nil, fmt.Errorf("bot: all collaborators are required")
	}

	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	asn := cfg.ASN
	if asn == "" {
		asn = "100"
	}

	return &Bot{
		roomID:   cfg.RoomID,
		asn:      asn,
		interval: interval,
		reader:   cfg.Reader,
		poster:   cfg.Poster,
		device:   cfg.Device,
		toggler:  cfg.Toggler,
		renderer: cfg.Renderer,
		uploader: cfg.Uploader,
		logger:   base.With().Str("component", "bot").Str("room_id", cfg.RoomID).Logger(),
	}, nil
}

// Seed returns the room's current top message ID. An empty room gets a
// single-space message so there is an ID to compare against.
func (b *Bot) Seed(ctx context.Context) (string, error) {
	messages, err := b.reader.ListMessages(ctx, b.roomID)
	if err != nil {
		return "", fmt.Errorf("seed: %w", err)
	}
	if len(messages) > 0 {
		return messages[0].ID, nil
	}

	msg, err := b.poster.PostMessage(ctx, b.roomID, " ")
	if err != nil {
		return "", fmt.Errorf("seed empty room: %w", err)
	}
	b.logger.Info().Str("message_id", msg.ID).Msg("Seeded empty room")
	return msg.ID, nil
}

// Poll fetches the room once. When the top message differs from lastSeen it
// is dispatched, and Poll returns the ID the next poll should compare
// against: the last reply posted, or the handled message when nothing was
// posted.
func (b *Bot) Poll(ctx context.Context, lastSeen string) (next string, err error) {
	defer func() { metrics.RecordPoll(err) }()

	messages, err := b.reader.ListMessages(ctx, b.roomID)
	if err != nil {
		return lastSeen, err
	}
	if len(messages) == 0 {
		return lastSeen, nil
	}

	top := messages[0]
	if top.ID == lastSeen {
		return lastSeen, nil
	}
	return b.Dispatch(ctx, top), nil
}

// Dispatch runs the first command matching msg and returns the new
// last-seen ID.
func (b *Bot) Dispatch(ctx context.Context, msg webex.Message) string {
	ctx, requestID := logging.WithRequestID(ctx, "")
	logger := b.logger.With().
		Str("request_id", requestID).
		Str("message_id", msg.ID).
		Logger()
	d := &dispatch{bot: b, ctx: ctx, logger: logger}

	cmd, ip := match(msg.Text)
	if cmd == nil {
		metrics.RecordCommand("")
		d.logger.Debug().Msg("No command matched; marking message seen")
		return msg.ID
	}

	d.ip = ip
	d.logger = d.logger.With().Str("command", cmd.name).Logger()
	d.logger.Info().Str("neighbor", ip).Msg("Dispatching command")
	metrics.RecordCommand(cmd.name)

	start := time.Now()
	cmd.handle(b, d)
	d.logger.Debug().Dur("elapsed", time.Since(start)).Int("posts", d.posts).Msg("Command finished")

	if d.lastPosted != "" {
		return d.lastPosted
	}
	return msg.ID
}

// Run seeds the last-seen ID and polls every interval until ctx is done.
// Poll errors are logged and the loop keeps going.
func (b *Bot) Run(ctx context.Context) error {
	lastSeen, err := b.Seed(ctx)
	if err != nil {
		return err
	}
	b.logger.Info().
		Dur("interval", b.interval).
		Str("last_seen", lastSeen).
		Msg("Started polling room")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Stopped polling room")
			return nil
		case <-ticker.C:
			next, err := b.Poll(ctx, lastSeen)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				b.logger.Warn().Err(err).Msg("Failed to poll room")
			}
			lastSeen = next
		}
	}
}

// dispatch tracks the replies of one handled message.
type dispatch struct {
	bot    *Bot
	ctx    context.Context
	ip     string
	logger zerolog.Logger

	lastPosted string
	posts      int
}

func (d *dispatch) post(text string) {
	msg, err := d.bot.poster.PostMessage(d.ctx, d.bot.roomID, text)
	d.record(msg, err)
}

func (d *dispatch) postImage(text, imageURL string) {
	msg, err := d.bot.poster.PostMessageWithImage(d.ctx, d.bot.roomID, text, imageURL)
	d.record(msg, err)
}

func (d *dispatch) record(msg *webex.Message, err error) {
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to post reply")
		return
	}
	d.posts++
	if msg != nil && msg.ID != "" {
		d.lastPosted = msg.ID
	}
}

// fail logs a handler failure with its classification. err may be nil when
// the device answered with nothing usable.
func (d *dispatch) fail(err error, msg string) {
	ev := d.logger.Warn()
	if err != nil {
		ev = ev.Err(err).Str("kind", string(cserrors.KindOf(err)))
	}
	ev.Msg(msg)
}
