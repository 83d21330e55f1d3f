// Package dropbox publishes rendered diagrams to Dropbox and returns links the
// chat service can fetch directly.
package dropbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	sdk "github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/sharing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ccie14023/cataspark/internal/metrics"
)

// DefaultPrefix is the remote folder uploads are placed in.
const DefaultPrefix = "/cataspark/"

type fileUploader interface {
	Upload(arg *files.UploadArg, content io.Reader) (*files.FileMetadata, error)
}

type linkClient interface {
	CreateSharedLinkWithSettings(arg *sharing.CreateSharedLinkWithSettingsArg) (sharing.IsSharedLinkMetadata, error)
	ListSharedLinks(arg *sharing.ListSharedLinksArg) (*sharing.ListSharedLinksResult, error)
}

// Config configures the uploader.
type Config struct {
	Token  string
	Prefix string
	Logger *zerolog.Logger
}

// Uploader stores files under a fixed remote prefix.
type Uploader struct {
	prefix string
	files  fileUploader
	links  linkClient
	logger zerolog.Logger
}

// New returns an Uploader authenticated with cfg.Token.
func New(cfg Config) (*Uploader, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("dropbox: token is required")
	}
	sdkCfg := sdk.Config{Token: cfg.Token, LogLevel: sdk.LogOff}
	return newUploader(cfg, files.New(sdkCfg), sharing.New(sdkCfg)), nil
}

func newUploader(cfg Config, f fileUploader, l linkClient) *Uploader {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Uploader{
		prefix: prefix,
		files:  f,
		links:  l,
		logger: logger.With().Str("component", "dropbox").Logger(),
	}
}

// RemotePath resolves remotePath against the prefix. Absolute paths are kept;
// an empty path uses the base name of localPath.
func (u *Uploader) RemotePath(localPath, remotePath string) string {
	switch {
	case remotePath == "":
		return path.Join(u.prefix, filepath.Base(localPath))
	case strings.HasPrefix(remotePath, "/"):
		return path.Clean(remotePath)
	}
	return path.Join(u.prefix, remotePath)
}

// Upload copies localPath to remotePath, overwriting any existing file, and
// returns a direct-download link to it. Relative remote paths are placed
// under the prefix.
func (u *Uploader) Upload(ctx context.Context, localPath, remotePath string) (link string, err error) {
	defer func() { metrics.RecordUpload(err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("dropbox: open %s: %w", localPath, err)
	}
	defer f.Close()

	remote := u.RemotePath(localPath, remotePath)
	arg := files.NewUploadArg(remote)
	arg.Mode = &files.WriteMode{Tagged: sdk.Tagged{Tag: files.WriteModeOverwrite}}

	meta, err := u.files.Upload(arg, f)
	if err != nil {
		return "", fmt.Errorf("dropbox: upload %s: %w", remote, err)
	}
	u.logger.Debug().Str("path", meta.PathDisplay).Uint64("size", meta.Size).Msg("Uploaded file")

	if err := ctx.Err(); err != nil {
		return "", err
	}

	shared, err := u.sharedLink(remote)
	if err != nil {
		return "", err
	}
	return DirectLink(shared)
}

// sharedLink creates a link for remote, reusing an existing one when the
// path is already shared.
func (u *Uploader) sharedLink(remote string) (string, error) {
	res, createErr := u.links.CreateSharedLinkWithSettings(sharing.NewCreateSharedLinkWithSettingsArg(remote))
	if createErr == nil {
		if url := linkURL(res); url != "" {
			return url, nil
		}
		return "", fmt.Errorf("dropbox: share %s: response has no URL", remote)
	}

	listArg := sharing.NewListSharedLinksArg()
	listArg.Path = remote
	listArg.DirectOnly = true
	existing, err := u.links.ListSharedLinks(listArg)
	if err == nil && existing != nil {
		for _, l := range existing.Links {
			if url := linkURL(l); url != "" {
				return url, nil
			}
		}
	}
	return "", fmt.Errorf("dropbox: share %s: %w", remote, createErr)
}

func linkURL(meta sharing.IsSharedLinkMetadata) string {
	switch m := meta.(type) {
	case *sharing.FileLinkMetadata:
		return m.Url
	case *sharing.FolderLinkMetadata:
		return m.Url
	case *sharing.SharedLinkMetadata:
		return m.Url
	}
	return ""
}

// DirectLink turns a share link into a direct-download link by replacing its
// final character with "1" ("?dl=0" becomes "?dl=1").
func DirectLink(shared string) (string, error) {
	if shared == "" {
		return "", fmt.Errorf("dropbox: empty shared link")
	}
	return shared[:len(shared)-1] + "1", nil
}
