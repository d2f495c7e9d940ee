package main

import (
	"context"
	"io"
	"os"

	"github.com/agentuity/go-cachespace/config"
	"github.com/agentuity/go-cachespace/logger"
	"github.com/agentuity/go-cachespace/registry"
	"github.com/agentuity/go-cachespace/space"
	"github.com/agentuity/go-cachespace/tui"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const envConfig = "CACHESPACE_CONFIG"

// app is the state shared by every subcommand of one invocation.
type app struct {
	out   *tui.Printer
	log   logger.Logger
	cfg   *config.Config
	reg   *registry.Registry
	redis *redis.Client
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: tui.NewPrinter(out)}
	root := &cobra.Command{
		Use:           "cachespace",
		Short:         "Inspect and edit cache spaces on disk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file (env "+envConfig+")")
	root.PersistentFlags().String("path", "", "engine base directory (env "+config.EnvPath+")")
	root.PersistentFlags().String("log-level", "", "log level (env "+logger.EnvLevel+")")
	root.PersistentFlags().StringP("space", "s", "", "space name, the default space when empty")

	root.AddCommand(
		a.getCommand(),
		a.setCommand(),
		a.keysCommand(),
		a.countCommand(),
		a.rmCommand(),
		a.clearCommand(),
		a.statsCommand(),
		a.configCommand(),
	)
	return root
}

// flagOrEnv returns the flag value, the environment value or defaultValue, in
// that order.
func flagOrEnv(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if v, _ := cmd.Flags().GetString(flagName); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(envName); ok {
		return v
	}
	return defaultValue
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(flagOrEnv(cmd, "config", envConfig, ""))
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("path"); v != "" {
		cfg.Path = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.log = logger.NewConsoleLogger(cfg.Level())
	return nil
}

// open loads the config and initializes the registry.
func (a *app) open(cmd *cobra.Command) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	opts, client, err := a.cfg.EngineOptions(a.log)
	if err != nil {
		return err
	}
	reg := registry.New(registry.WithLogger(a.log), registry.WithEngineOptions(opts...))
	if err := reg.Initialize(commandContext(cmd), a.cfg.Path); err != nil {
		if client != nil {
			client.Close()
		}
		return err
	}
	a.reg, a.redis = reg, client
	return nil
}

func (a *app) close(ctx context.Context) error {
	var err error
	if a.reg != nil {
		err = a.reg.Close(ctx)
		a.reg = nil
	}
	if a.redis != nil {
		err = errors.CombineErrors(err, a.redis.Close())
		a.redis = nil
	}
	return err
}

func (a *app) space(cmd *cobra.Command) *space.Space {
	name, _ := cmd.Flags().GetString("space")
	return a.reg.Space(name)
}

// run wraps a subcommand body so the registry is open while fn runs.
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(cmd); err != nil {
			a.out.Error("%s", err)
			return err
		}
		ctx := commandContext(cmd)
		err := fn(ctx, cmd, args)
		if err != nil {
			a.out.Error("%s", err)
		}
		return errors.CombineErrors(err, a.close(ctx))
	}
}
