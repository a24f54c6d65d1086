package whisper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fmueller/voxscribe/internal/download"
)

// Handle is the process-wide loaded model.
type Handle struct {
	Model Model
	Name  string
	Path  string
}

type LifecycleConfig struct {
	// Model is a registry name or a path to a .bin file.
	Model        string
	ModelDir     string
	AutoDownload bool
	NoProgress   bool
}

// Lifecycle owns the single model handle. Loading is lazy and happens at most
// once per successful load; a failed load leaves nothing cached so the next
// call tries again.
type Lifecycle struct {
	cfg      LifecycleConfig
	open     Opener
	download download.Func
	logger   *zap.Logger

	group singleflight.Group

	mu     sync.Mutex
	handle *Handle
}

type LifecycleOption func(*Lifecycle)

func WithDownloader(fn download.Func) LifecycleOption {
	return func(l *Lifecycle) {
		if fn != nil {
			l.download = fn
		}
	}
}

func WithLogger(logger *zap.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLifecycle(cfg LifecycleConfig, open Opener, opts ...LifecycleOption) *Lifecycle {
	if open == nil {
		open = OpenCPP
	}
	l := &Lifecycle{
		cfg:      cfg,
		open:     open,
		download: download.File,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureLoaded returns the loaded handle, loading it first if needed. Missing
// weights are downloaded only when auto-download is enabled.
func (l *Lifecycle) EnsureLoaded(ctx context.Context) (*Handle, error) {
	return l.load(ctx, false)
}

// Prefetch downloads the weights regardless of auto-download, re-fetching a
// file whose pinned checksum does not verify, and then loads the model the
// same way EnsureLoaded does. A handle that is already loaded is returned
// unchanged.
func (l *Lifecycle) Prefetch(ctx context.Context) (*Handle, error) {
	return l.load(ctx, true)
}

func (l *Lifecycle) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != nil
}

// Close releases the model. It is meant for process exit.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	handle := l.handle
	l.handle = nil
	l.mu.Unlock()

	if handle == nil || handle.Model == nil {
		return nil
	}
	return handle.Model.Close()
}

func (l *Lifecycle) cached() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

func (l *Lifecycle) load(ctx context.Context, prefetch bool) (*Handle, error) {
	if handle := l.cached(); handle != nil {
		return handle, nil
	}

	v, err, shared := l.group.Do("model", func() (any, error) {
		if handle := l.cached(); handle != nil {
			return handle, nil
		}

		handle, err := l.construct(ctx, prefetch)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.handle = handle
		l.mu.Unlock()
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.Debug("joined in-flight model load")
	}
	return v.(*Handle), nil
}

func (l *Lifecycle) construct(ctx context.Context, prefetch bool) (*Handle, error) {
	resolved, err := ResolveModel(l.cfg.Model, l.cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if !resolved.IsCustomPath {
		if err := l.ensureWeights(ctx, &resolved, prefetch); err != nil {
			return nil, err
		}
	}

	l.logger.Info("loading model", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
	started := time.Now()
	model, err := l.open(resolved.Path)
	if err != nil {
		l.logger.Warn("model load failed", zap.String("path", resolved.Path), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	l.logger.Info("model loaded", zap.String("model", resolved.Name), zap.Duration("elapsed", time.Since(started)))

	return &Handle{Model: model, Name: resolved.Name, Path: resolved.Path}, nil
}

func (l *Lifecycle) ensureWeights(ctx context.Context, resolved *ResolvedModel, prefetch bool) error {
	if prefetch && !resolved.NeedsDownload && resolved.SHA256 != "" {
		if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
			l.logger.Warn("model checksum verification failed; downloading fresh copy",
				zap.String("model", resolved.Name), zap.Error(err))
			resolved.NeedsDownload = true
		}
	}

	if !resolved.NeedsDownload {
		return nil
	}

	if !prefetch && !l.cfg.AutoDownload {
		return fmt.Errorf("%w: model %q is missing at %s; run `voxscribe setup --model %s` or use --auto-download=true",
			ErrModelUnavailable, resolved.Name, resolved.Path, resolved.Name)
	}

	if err := os.MkdirAll(l.cfg.ModelDir, 0o755); err != nil {
		return fmt.Errorf("%w: create model directory %s: %w", ErrModelUnavailable, l.cfg.ModelDir, err)
	}

	l.logger.Info("downloading model", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := l.download(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		Description:    "downloading " + resolved.Name,
		NoProgress:     l.cfg.NoProgress,
		Logger:         l.logger,
	}); err != nil {
		return fmt.Errorf("%w: download model %q: %w", ErrModelUnavailable, resolved.Name, err)
	}

	resolved.NeedsDownload = false
	return nil
}
