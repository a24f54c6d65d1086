package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/clipboard"
	"github.com/fmueller/voxscribe/internal/config"
	"github.com/fmueller/voxscribe/internal/download"
	"github.com/fmueller/voxscribe/internal/logging"
	"github.com/fmueller/voxscribe/internal/platform"
	"github.com/fmueller/voxscribe/internal/record"
	"github.com/fmueller/voxscribe/internal/session"
	"github.com/fmueller/voxscribe/internal/transcribe"
	"github.com/fmueller/voxscribe/internal/version"
	"github.com/fmueller/voxscribe/internal/whisper"
)

// annotationLogToFile marks commands that draw a full screen and must not
// log to stderr.
const annotationLogToFile = "voxscribe/log-to-file"

type appState struct {
	configPath   string
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	model        string
	modelDir     string
	language     string
	autoDownload bool
	backend      string
	input        string
	inputFormat  string
	copyEmpty    bool

	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
	goos   string

	openModel  whisper.Opener
	downloadFn download.Func
	recordFn   func(ctx context.Context, seconds int) (string, error)
	copyFn     func(ctx context.Context, value string) error
	backends   func(goos string) []record.Backend

	modelsOnce sync.Once
	models     *whisper.Lifecycle
}

func newAppState() *appState {
	defaults := config.Default()
	return &appState{
		model:        defaults.Model,
		language:     defaults.Language,
		autoDownload: defaults.AutoDownload,
		backend:      defaults.Record.Backend,
		now:          time.Now,
		goos:         runtime.GOOS,
		openModel:    whisper.OpenCPP,
		downloadFn:   download.File,
		copyFn:       clipboard.CopyText,
	}
}

func NewRootCmd() *cobra.Command {
	app := newAppState()

	cmd := &cobra.Command{
		Use:           "voxscribe",
		Short:         "Record or pick audio and transcribe it with a local whisper model",
		Long:          "voxscribe turns speech into text on your machine. Without a subcommand it opens the interactive menu.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runMenu(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Config file (default: <config dir>/voxscribe/config.yaml when present)")
	flags.BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
	flags.StringVar(&app.model, "model", app.model, "Model name ("+strings.Join(whisper.ModelNames(), "|")+") or model file path")
	flags.StringVar(&app.modelDir, "model-dir", "", "Directory where models are stored")
	flags.StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	flags.BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
	flags.StringVar(&app.backend, "backend", app.backend, "Recording backend: auto|miniaudio|arecord|ffmpeg")
	flags.StringVar(&app.input, "input", "", "Input device (run \"voxscribe devices\" to list); e.g. device name (miniaudio), hw:1,0 (arecord), :1 (ffmpeg)")
	flags.StringVar(&app.inputFormat, "input-format", "", "Input format for ffmpeg backend (pulse|alsa|avfoundation)")
	flags.BoolVar(&app.copyEmpty, "copy-empty", false, "Copy blank transcripts to clipboard")

	cmd.AddCommand(newMenuCmd(app))
	cmd.AddCommand(newDictateCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newPanelCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads the config, applies explicitly set flags on top and builds the
// logger.
func (a *appState) setup(cmd *cobra.Command) error {
	defaultPath, err := platform.ResolveConfigPath()
	if err != nil {
		defaultPath = ""
	}

	cfg, source, err := config.Resolve(a.configPath, defaultPath, ".env")
	if err != nil {
		return err
	}
	a.applyFlags(cmd, cfg)
	cfg.Language = sanitizeLanguage(cfg.Language)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logOpts := logging.Options{Verbose: cfg.Log.Verbose, JSON: cfg.Log.JSON, File: cfg.Log.File}
	if cmd.Annotations[annotationLogToFile] == "true" && logOpts.File == "" {
		logOpts.File = filepath.Join(platform.TempDir(), "voxscribe.log")
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	if source != "" {
		logger.Debug("config loaded", zap.String("path", source))
	}
	return nil
}

func (a *appState) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Log.Verbose = a.verbose
	}
	if flags.Changed("json") {
		cfg.Log.JSON = a.jsonLogs
	}
	if flags.Changed("no-progress") {
		cfg.NoProgress = a.noProgress
	}
	if flags.Changed("model") {
		cfg.Model = a.model
	}
	if flags.Changed("model-dir") {
		cfg.ModelDir = a.modelDir
	}
	if flags.Changed("language") {
		cfg.Language = a.language
	}
	if flags.Changed("auto-download") {
		cfg.AutoDownload = a.autoDownload
	}
	if flags.Changed("backend") {
		cfg.Record.Backend = a.backend
	}
	if flags.Changed("input") {
		cfg.Record.Input = a.input
	}
	if flags.Changed("input-format") {
		cfg.Record.Format = a.inputFormat
	}
}

func (a *appState) conf() *config.Config {
	if a.cfg == nil {
		a.cfg = config.Default()
	}
	return a.cfg
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.conf().NoProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// lifecycle returns the process-wide model lifecycle.
func (a *appState) lifecycle() *whisper.Lifecycle {
	a.modelsOnce.Do(func() {
		cfg := a.conf()
		modelDir, err := platform.ResolveModelDir(cfg.ModelDir)
		if err != nil {
			a.log().Warn("cannot resolve model directory", zap.Error(err))
		}
		a.models = whisper.NewLifecycle(whisper.LifecycleConfig{
			Model:        cfg.Model,
			ModelDir:     modelDir,
			AutoDownload: cfg.AutoDownload,
			NoProgress:   !a.progressEnabled(),
		}, a.openModel, whisper.WithDownloader(a.downloadFn), whisper.WithLogger(a.log()))
	})
	return a.models
}

func (a *appState) close() error {
	if a.models == nil {
		return nil
	}
	return a.models.Close()
}

func (a *appState) engine() *transcribe.Engine {
	cfg := a.conf()
	return transcribe.New(
		audio.NewLoader(cfg.FFmpeg, a.log()),
		whisper.Options{Language: cfg.Language, BeamSize: cfg.BeamSize, Threads: cfg.Threads},
		a.log(),
	)
}

func (a *appState) orchestrator(observer session.Observer) *session.Orchestrator {
	return session.New(
		a.lifecycle(),
		recorderFunc(a.recordAudio),
		a.engine(),
		session.WithLogger(a.log()),
		session.WithObserver(observer),
	)
}

type recorderFunc func(ctx context.Context, seconds int) (string, error)

func (f recorderFunc) Record(ctx context.Context, seconds int) (string, error) {
	return f(ctx, seconds)
}

// recordAudio captures into a temporary WAV with the configured backend.
func (a *appState) recordAudio(ctx context.Context, seconds int) (string, error) {
	if a.recordFn != nil {
		return a.recordFn(ctx, seconds)
	}

	recorder, err := a.recorder()
	if err != nil {
		return "", err
	}
	return recorder.Record(ctx, seconds)
}

func (a *appState) recorder() (*record.Recorder, error) {
	cfg := a.conf()
	backend, err := record.NewBackend(cfg.Record.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", record.ErrDeviceUnavailable, err)
	}
	a.log().Debug("recording backend selected", zap.String("backend", backend.Name()))

	return &record.Recorder{
		Backend: backend,
		Input:   cfg.Record.Input,
		Format:  cfg.Record.Format,
		TempDir: platform.TempDir(),
		Logger:  a.log(),
	}, nil
}

// printTranscript writes the text and copies it when asked. Blank transcripts
// are only copied with --copy-empty.
func (a *appState) printTranscript(ctx context.Context, out io.Writer, text string, copyToClipboard bool) error {
	fmt.Fprintln(out, text)

	blank := transcribe.IsBlank(text)
	if blank {
		a.log().Warn(transcribe.NoSpeechHint())
	}
	if !copyToClipboard || (blank && !a.copyEmpty) {
		return nil
	}

	copyFn := a.copyFn
	if copyFn == nil {
		copyFn = clipboard.CopyText
	}
	if err := copyFn(ctx, text); err != nil {
		return fmt.Errorf("copy transcript: %w", err)
	}
	a.log().Info("transcript copied to clipboard")
	return nil
}

// outcomeError turns a failed request into a command error.
func outcomeError(outcome session.Outcome) error {
	switch {
	case outcome.OK():
		return nil
	case outcome.Err != nil:
		return outcome.Err
	default:
		return errors.New(session.KindNoFileChosen.Title())
	}
}

func validateSeconds(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("--seconds must be a positive number of seconds, got %d", seconds)
	}
	return nil
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
