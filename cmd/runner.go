package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/desertthunder/podsync/internal/device"
	"github.com/desertthunder/podsync/internal/formatter"
	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/repositories"
	"github.com/desertthunder/podsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	fs         afero.Fs
	binding    device.Binding
	db         *sql.DB
	library    *repositories.Library
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Fs         afero.Fs              // filesystem for sync targets and exports; defaults to the OS
	Binding    device.Binding        // defaults to [device.SQLiteBinding]
	Library    *repositories.Library // opened from Config.Database when nil
}

// NewRunner creates a new Runner with the provided configuration
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
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Binding == nil {
		opts.Binding = device.SQLiteBinding{}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		fs:         opts.Fs,
		binding:    opts.Binding,
		library:    opts.Library,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, channelCommand, episodeCommand, syncCommand, deviceCommand, cleanCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the library database if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// openLibrary opens the local library database and applies pending migrations.
func (r *Runner) openLibrary() (*repositories.Library, error) {
	if r.library != nil {
		return r.library, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.library = repositories.NewLibrary(db)
	return r.library, nil
}

// loadChannels returns every channel, or only the one named by key (ID or title).
func (r *Runner) loadChannels(key string) ([]*models.Channel, error) {
	lib, err := r.openLibrary()
	if err != nil {
		return nil, err
	}
	channels, err := lib.LoadChannels()
	if err != nil {
		return nil, err
	}
	if key == "" {
		return channels, nil
	}
	ch, err := findChannel(channels, key)
	if err != nil {
		return nil, err
	}
	return []*models.Channel{ch}, nil
}

func findChannel(channels []*models.Channel, key string) (*models.Channel, error) {
	for _, ch := range channels {
		if ch.ID == key || strings.EqualFold(ch.Title, key) {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrChannelNotFound, key)
}

// emit writes rendered output to path on the runner's filesystem, or to the output writer.
func (r *Runner) emit(data []byte, path string) error {
	if path == "" {
		_, err := r.output.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := formatter.WriteExport(r.fs, path, data); err != nil {
		return err
	}
	r.logger.Info("export written", "path", path)
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
