package fileutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

const (
	defaultCoverWidth = 600
	coverJPEGQuality  = 85
)

// CoverOptions configures a CoverDownloader.
type CoverOptions struct {
	// Dir is where covers are saved.
	Dir string
	// MaxWidth is the width covers are scaled down to. Smaller images are kept as is.
	MaxWidth int
	// Overwrite forces re-downloading covers that already exist.
	Overwrite bool
	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client
}

// CoverResult describes a saved cover.
type CoverResult struct {
	// Downloaded is false when an existing file was reused.
	Downloaded bool
	LocalPath  string
	Filename   string
	// SourceURL is the URL the cover came from. Empty when reused.
	SourceURL string
}

// CoverDownloader fetches cover images, scales them and stores them as JPEG.
type CoverDownloader struct {
	opts   CoverOptions
	client *http.Client
}

// NewCoverDownloader creates a CoverDownloader.
func NewCoverDownloader(opts CoverOptions) *CoverDownloader {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = defaultCoverWidth
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CoverDownloader{opts: opts, client: client}
}

// CoverFilename creates the cover file name for a book title.
// Returns: "Title - cover.jpg"
func CoverFilename(title string) string {
	return SanitizeFilename(title) + " - cover.jpg"
}

// Download saves the first of urls that yields a decodable image. urls are
// expected largest first. Returns nil and no error when urls is empty.
func (d *CoverDownloader) Download(ctx context.Context, title string, urls []string) (*CoverResult, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	filename := CoverFilename(title)
	result := &CoverResult{
		LocalPath: filepath.Join(d.opts.Dir, filename),
		Filename:  filename,
	}

	if FileExists(result.LocalPath) && !d.opts.Overwrite {
		slog.Debug("Cover already exists, skipping download", "path", result.LocalPath)
		return result, nil
	}

	if err := os.MkdirAll(d.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cover directory: %w", err)
	}

	var lastErr error
	for _, u := range urls {
		if err := d.fetch(ctx, u, result.LocalPath); err != nil {
			slog.Debug("Cover download failed", "url", u, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		result.Downloaded = true
		result.SourceURL = u
		slog.Info("Downloaded cover", "path", result.LocalPath, "url", u)
		return result, nil
	}

	return nil, fmt.Errorf("downloading cover for %q: %w", title, lastErr)
}

func (d *CoverDownloader) fetch(ctx context.Context, imageURL, savePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d downloading cover", resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decoding cover: %w", err)
	}

	if img.Bounds().Dx() > d.opts.MaxWidth {
		img = imaging.Resize(img, d.opts.MaxWidth, 0, imaging.Lanczos)
	}

	return imaging.Save(img, savePath, imaging.JPEGQuality(coverJPEGQuality))
}
