package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"maildash/config"
	"maildash/models"
	"maildash/remote"
	"maildash/session"
	"maildash/storage"
	"maildash/store"
	"maildash/utils"
)

// cliSessionKey is the Meta entry holding the CLI's session key
const cliSessionKey = "cli_session"

var (
	cfgFile    string
	verbose    bool
	jsonOutput bool
)

// mailAPI is everything the CLI needs from the mail API
type mailAPI interface {
	store.API
	session.Authenticator
}

// newAPI builds the mail API client; tests swap it for a fake
var newAPI = func(cfg *config.Config, log *utils.Logger) mailAPI {
	return remote.New(cfg.API.BaseURL, cfg.API.Timeout(),
		remote.WithToken(cfg.API.Token),
		remote.WithLogger(log),
	)
}

var rootCmd = &cobra.Command{
	Use:   "maildashctl",
	Short: "Work with a maildash mailbox from the terminal",
	Long: `maildashctl drives the same mailbox store as the maildash dashboard.

Sign in once with "maildashctl login" and "maildashctl callback <code>";
later invocations reuse the session kept in the local database.`,
	SilenceUsage: true,
}

// Execute runs the root command, canceling in-flight calls on interrupt
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "path to the TOML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// environment is the state one command invocation works with
type environment struct {
	cfg      *config.Config
	log      *utils.Logger
	db       *storage.DB
	meta     *storage.SessionStorage
	manager  *session.Manager
	out      io.Writer
	registry *store.Registry
}

func openEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	level := utils.WARN
	if verbose {
		level = utils.DEBUG
	}
	log := utils.NewLoggerTo(cmd.ErrOrStderr(), level)

	db, err := storage.InitDB(cfg.Storage.Folder)
	if err != nil {
		return nil, fmt.Errorf("open storage (is the server holding %s?): %w", cfg.Storage.Folder, err)
	}

	api := newAPI(cfg, log.WithField("component", "remote"))
	meta := storage.NewSessionStorage(db)
	registry := store.NewRegistry(api, log, store.WithSearchK(cfg.Search.DefaultK))

	return &environment{
		cfg:      cfg,
		log:      log,
		db:       db,
		meta:     meta,
		manager:  session.NewManager(api, meta, registry, cfg.JWT.Secret, cfg.JWT.TTL(), log),
		out:      cmd.OutOrStdout(),
		registry: registry,
	}, nil
}

func (e *environment) Close() error {
	return e.db.Close()
}

// sessionKey returns the CLI session key, creating one when create is set
func (e *environment) sessionKey(create bool) (string, error) {
	key, err := e.meta.GetMeta(cliSessionKey)
	if err == nil && key != "" {
		return key, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if !create {
		return "", session.ErrNoSession
	}

	key = uuid.New().String()
	if err := e.meta.SetMeta(cliSessionKey, key); err != nil {
		return "", fmt.Errorf("save cli session: %w", err)
	}
	return key, nil
}

// current returns the logged-in session and its store
func (e *environment) current() (models.Session, *store.Store, error) {
	key, err := e.sessionKey(false)
	if err == nil {
		var sess models.Session
		if sess, err = e.manager.Current(key); err == nil {
			return sess, e.manager.Store(sess), nil
		}
	}
	if errors.Is(err, session.ErrNoSession) {
		return models.Session{}, nil, errors.New(`not logged in; run "maildashctl login" first`)
	}
	return models.Session{}, nil, err
}

// print writes v as JSON with --json, or calls text otherwise
func (e *environment) print(v interface{}, text func(w io.Writer)) error {
	if jsonOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, string(data))
		return nil
	}
	text(e.out)
	return nil
}

// run opens the environment around fn
func run(fn func(ctx context.Context, e *environment, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnvironment(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd.Context(), e, args)
	}
}

// runWithSession is run for commands that need a logged-in session
func runWithSession(fn func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error) func(*cobra.Command, []string) error {
	return run(func(ctx context.Context, e *environment, args []string) error {
		sess, st, err := e.current()
		if err != nil {
			return err
		}
		return fn(ctx, e, sess, st, args)
	})
}
