package main

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/catalog"
	"github.com/goliatone/go-object-cache/notify"
	"github.com/goliatone/go-object-cache/pkg/config"
	"github.com/goliatone/go-object-cache/pkg/di"
	"github.com/goliatone/go-object-cache/repositorycache"
	"github.com/goliatone/go-object-cache/store"
	"github.com/spf13/cobra"
)

// errUsage marks errors caused by the command line rather than the system.
var errUsage = errors.New("usage")

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.IsAny(err,
		errUsage,
		repositorycache.ErrInvalidID,
		cache.ErrInvalidKey,
		store.ErrInvalidID,
		catalog.ErrInvalidFavorite,
		catalog.ErrUnknownKind,
		notify.ErrNotFound,
	):
		return exitUsage
	default:
		return exitFailed
	}
}

type app struct {
	configPath string
	envFile    string
	backend    string
	container  *di.Container
}

// newRootCommand builds the command tree. The returned app must be closed
// once the command has run.
func newRootCommand() (*app, *cobra.Command) {
	a := &app{}

	root := &cobra.Command{
		Use:           "mxcache",
		Short:         "Operate the per-object cache of the course catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file read before the environment")
	flags.StringVar(&a.backend, "backend", "", "cache backend override (redis or memory)")

	root.AddCommand(
		newMigrateCommand(a),
		newGetCommand(a),
		newInvalidateCommand(a),
		newFavoriteCommand(a),
		newNotificationsCommand(a),
	)
	return a, root
}

func (a *app) open() error {
	cfg, err := config.Load(a.configPath, config.WithEnvFile(a.envFile))
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}

	container, err := di.NewContainer(cfg, di.WithLogger(logger))
	if err != nil {
		return err
	}
	a.container = container
	return nil
}

func (a *app) close() error {
	if a.container == nil {
		return nil
	}
	_ = a.container.Logger().Sync()
	err := a.container.Close()
	a.container = nil
	return err
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "invalid id %q", arg), errUsage)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
