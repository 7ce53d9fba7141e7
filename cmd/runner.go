package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/segue/internal/analysis"
	"github.com/desertthunder/segue/internal/repositories"
	"github.com/desertthunder/segue/internal/sequencer"
	"github.com/desertthunder/segue/internal/services"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/desertthunder/segue/internal/tasks"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.Service
	logger     *log.Logger
	output     io.Writer

	mu     sync.Mutex
	db     *sql.DB
	dbErr  error
	dbOnce sync.Once
	authed bool
	engine *tasks.PlaylistEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.Service
	DB         *sql.DB // opened from the config on first use when nil
	Logger     *log.Logger
	Output     io.Writer
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

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
	if opts.DB != nil {
		r.dbOnce.Do(func() {})
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, analyseCommand, rearrangeCommand, cacheCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens the configured database once and runs pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	r.dbOnce.Do(func() {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			r.dbErr = err
			return
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			r.dbErr = fmt.Errorf("failed to run migrations: %w", err)
			return
		}
		r.db = db
	})
	return r.db, r.dbErr
}

// Close releases the database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// playlistEngine builds the engine on first use. The feature cache and run history are left
// out with a warning when the database cannot be opened.
func (r *Runner) playlistEngine() *tasks.PlaylistEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		return r.engine
	}

	opts := tasks.EngineOpts{
		Weights:   analysis.WeightsFromConfig(r.config.Analysis),
		Sequencer: sequencer.OptionsFromConfig(r.config.Sequencer),
		Logger:    r.logger,
	}

	if db, err := r.database(); err != nil {
		r.logger.Warn("database unavailable, running without feature cache and history", "error", err)
	} else {
		opts.Cache = repositories.NewTrackCache(repositories.NewTrackRepository(db), "spotify")
		opts.History = repositories.NewRunHistory(repositories.NewRearrangementRepository(db))
	}

	r.engine = tasks.NewPlaylistEngine(r.spotify, opts)
	return r.engine
}

// ensureSpotify authenticates the Spotify service once: with the stored user token when there
// is one, otherwise as the application with client credentials.
func (r *Runner) ensureSpotify(ctx context.Context) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrServiceUnavailable, r.configName())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.authed {
		return nil
	}

	if oauthSvc, ok := r.spotify.(services.OAuthService); ok {
		if token := r.config.Credentials.Spotify.Token(); token != nil {
			if err := oauthSvc.OAuthenticate(ctx, token); err != nil {
				return err
			}
			r.authed = true
			return nil
		}
	}

	r.logger.Debug("no user token stored, using client credentials")
	if err := r.spotify.Authenticate(ctx, map[string]string{"grant_type": "client_credentials"}); err != nil {
		return err
	}
	r.authed = true
	return nil
}

// saveTokens stores a newly issued token in the config and writes it to configPath when set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.logger.Debug("spotify token saved", "path", r.configPath)
	return nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	out, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	s := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(s)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	s := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(s)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeHeader(title string) {
	r.writePlain("\n%s\n", headerStyle.Render(title))
}

// writeTable renders rows with a rounded go-pretty table, headers as given. Short rows are padded
// with empty cells. Columns listed in right are right aligned.
func (r *Runner) writeTable(headers []string, rows [][]string, right ...int) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(headers))
		for i := range headers {
			tr[i] = ""
			if i < len(row) {
				tr[i] = row[i]
			}
		}
		tw.AppendRow(tr)
	}

	configs := make([]table.ColumnConfig, 0, len(right))
	for _, col := range right {
		configs = append(configs, table.ColumnConfig{Number: col + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	r.writePlain("%s\n", tw.Render())
}
