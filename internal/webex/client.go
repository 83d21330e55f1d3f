// Package webex is a minimal client for the Webex (formerly Cisco Spark)
// messaging REST API. Every call is a single synchronous request; there is no
// retry, backoff, or pagination.
package webex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
	"github.com/ccie14023/cataspark/internal/metrics"
	"github.com/ccie14023/cataspark/pkg/tlsutil"
)

// DefaultBaseURL is the public Webex API root.
const DefaultBaseURL = "https://webexapis.com/v1"

const maxErrorBody = 512

// Room is a Webex space.
type Room struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Type    string    `json:"type,omitempty"`
	Created time.Time `json:"created"`
}

// Message is a single post in a room.
type Message struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	Text        string    `json:"text,omitempty"`
	PersonID    string    `json:"personId,omitempty"`
	PersonEmail string    `json:"personEmail,omitempty"`
	Files       []string  `json:"files,omitempty"`
	Created     time.Time `json:"created"`
}

type postRequest struct {
	RoomID string   `json:"roomId"`
	Text   string   `json:"text"`
	Files  []string `json:"files,omitempty"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

// Config holds the settings for one API identity.
type Config struct {
	BaseURL string
	Token   string
	// Fingerprint pins the API server certificate.
	Fingerprint        string
	InsecureSkipVerify bool
	Timeout            time.Duration
	Logger             *zerolog.Logger
}

// Client talks to the API as a single identity (a user or a bot).
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New returns a Client authenticating with cfg.Token.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("webex: token is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("webex: invalid base URL %q: %w", base, err)
	}

	transport := tlsutil.CreateHTTPClient(tlsutil.ClientOptions{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Fingerprint:        cfg.Fingerprint,
		Timeout:            cfg.Timeout,
	})
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, transport)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = transport.Timeout

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "webex").Logger(),
	}, nil
}

// ListRooms returns the rooms visible to the client's identity.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var resp itemsResponse[Room]
	if err := c.do(ctx, "list rooms", http.MethodGet, "/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// CreateRoom creates a room titled title.
func (c *Client) CreateRoom(ctx context.Context, title string) (*Room, error) {
	var room Room
	body := map[string]string{"title": title}
	if err := c.do(ctx, "create room", http.MethodPost, "/rooms", body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ResolveRoom returns the ID of the first room titled title, or "" when no
// room matches.
func (c *Client) ResolveRoom(ctx context.Context, title string) (string, error) {
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range rooms {
		if r.Title == title {
			return r.ID, nil
		}
	}
	return "", nil
}

// ListMessages returns the newest page of messages in roomID, newest first.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]Message, error) {
	var resp itemsResponse[Message]
	path := "/messages?" + url.Values{"roomId": {roomID}}.Encode()
	if err := c.do(ctx, "list messages", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// PostMessage posts text to roomID.
func (c *Client) PostMessage(ctx context.Context, roomID, text string) (*Message, error) {
	return c.post(ctx, postRequest{RoomID: roomID, Text: text})
}

// PostMessageWithImage posts text with an attachment fetched by the API from
// imageURL, which must be publicly reachable and point directly at the file.
func (c *Client) PostMessageWithImage(ctx context.Context, roomID, text, imageURL string) (*Message, error) {
	return c.post(ctx, postRequest{RoomID: roomID, Text: text, Files: []string{imageURL}})
}

func (c *Client) post(ctx context.Context, msg postRequest) (*Message, error) {
	var created Message
	err := c.do(ctx, "post message", http.MethodPost, "/messages", msg, &created)
	metrics.RecordChatPost(err)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteMessage deletes one message. The API only allows deleting messages
// the identity may moderate or authored.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, "delete message", http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil)
}

// DeleteAll deletes every listed message in roomID and returns how many were
// removed. Messages the identity may not delete are logged and skipped.
func (c *Client) DeleteAll(ctx context.Context, roomID string) (int, error) {
	msgs, err := c.ListMessages(ctx, roomID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, m := range msgs {
		if err := c.DeleteMessage(ctx, m.ID); err != nil {
			if ctx.Err() != nil {
				return deleted, ctx.Err()
			}
			c.logger.Warn().Err(err).Str("message_id", m.ID).Msg("Failed to delete message")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("Webex API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &cserrors.APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
