// Package download fetches model weights over HTTP into place, verifying a
// pinned SHA-256 before the file becomes visible at its destination.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

type Options struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	Description    string
	Retries        int
	RetryDelay     time.Duration
	NoProgress     bool
	// Progress receives the progress bar. It defaults to stderr, and the bar
	// is only drawn there when stderr is a terminal.
	Progress   io.Writer
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Func matches File so callers can substitute a fake fetcher.
type Func func(ctx context.Context, opts Options) error

// File downloads opts.URL to opts.Destination, retrying failed attempts.
func File(ctx context.Context, opts Options) error {
	if opts.URL == "" {
		return errors.New("download URL is required")
	}
	if opts.Destination == "" {
		return errors.New("destination path is required")
	}

	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 300 * time.Millisecond
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Minute}
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.Description == "" {
		opts.Description = "downloading " + filepath.Base(opts.Destination)
	}

	expected := strings.ToLower(strings.TrimSpace(opts.ExpectedSHA256))

	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if attempt > 1 {
			opts.Logger.Warn("retrying download",
				zap.Int("attempt", attempt),
				zap.Int("max", opts.Retries),
				zap.String("url", opts.URL),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * opts.RetryDelay):
			}
		}

		lastErr = downloadOnce(ctx, opts, expected)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return lastErr
}

// VerifyFileChecksum hashes the file at path. An empty expected sum accepts
// any content.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := strings.ToLower(strings.TrimSpace(expectedSHA256))

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	if expected == "" {
		return nil
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}

	return nil
}

func downloadOnce(ctx context.Context, opts Options, expectedChecksum string) error {
	tempPath := opts.Destination + ".part"
	_ = os.Remove(tempPath)

	outFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		_ = outFile.Close()
		if !success {
			_ = os.Remove(tempPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "voxscribe/1")

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	hash := sha256.New()
	writer := io.MultiWriter(outFile, hash)

	var bar *progressbar.ProgressBar
	if sink := progressSink(opts, resp.ContentLength); sink != nil {
		bar = progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription(opts.Description),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetWriter(sink),
			progressbar.OptionClearOnFinish(),
		)
		writer = io.MultiWriter(outFile, hash, bar)
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}

	if bar != nil {
		_ = bar.Finish()
	}

	if err := outFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	actualChecksum := hex.EncodeToString(hash.Sum(nil))
	if expectedChecksum != "" && actualChecksum != expectedChecksum {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expectedChecksum, actualChecksum)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, opts.Destination); err != nil {
		return fmt.Errorf("move temp file into destination: %w", err)
	}

	opts.Logger.Debug("download complete", zap.String("path", opts.Destination), zap.String("sha256", actualChecksum))
	success = true
	return nil
}

func progressSink(opts Options, contentLength int64) io.Writer {
	if opts.NoProgress || contentLength <= 0 {
		return nil
	}
	if opts.Progress != nil {
		return opts.Progress
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return os.Stderr
	}
	return nil
}
