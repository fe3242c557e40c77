package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"dojotap/internal/cache"
	"dojotap/internal/dojo"
	"dojotap/internal/loader"
	"dojotap/internal/logflow"
	"dojotap/internal/prefs"
	"dojotap/internal/prefsync"
	"dojotap/internal/shared"
	"dojotap/internal/storage"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	client     dojo.Client
	session    *dojo.SessionManager
	store      storage.Store
	history    *storage.SQLiteStore
	prefs      *prefs.Store
	cache      *cache.BootstrapCache
	loader     *loader.Loader
	engine     *prefsync.Engine
	flow       *logflow.Flow
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     dojo.Client
	Session    *dojo.SessionManager
	Store      storage.Store
	History    *storage.SQLiteStore
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
//
// The preference store, snapshot cache, loader, sync engine, and logging flow
// are derived from the storage backend and upstream client.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		session:    opts.Session,
		store:      opts.Store,
		history:    opts.History,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	r.prefs = prefs.NewStore(opts.Store, opts.Logger)
	r.cache = cache.New(opts.Store)

	if opts.Client != nil {
		r.loader = loader.New(opts.Client, r.cache, r.prefs, opts.Config.BootstrapTimeout(), opts.Logger)
		r.engine = prefsync.NewEngine(opts.Client, r.prefs, prefsync.Options{
			Debounce: opts.Config.SyncDebounce(),
			Logger:   opts.Logger,
			Notice:   func(msg string) { r.writePlain("%s\n", msg) },
		})
		r.flow = logflow.New(opts.Client, opts.Logger)
	}

	return r
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, tasksCommand, logCommand, pinCommand, unpinCommand, prefsCommand, timelineCommand, historyCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireClient guards actions that need the upstream client graph.
func (r *Runner) requireClient() error {
	if r.client == nil || r.loader == nil {
		return fmt.Errorf("%w: upstream client not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
