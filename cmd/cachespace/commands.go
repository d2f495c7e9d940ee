package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/agentuity/go-cachespace/cache"
	"github.com/agentuity/go-cachespace/config"
	"github.com/agentuity/go-cachespace/engine"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/cobra"
)

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored at key",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s := a.space(cmd)
			found, entry, err := a.reg.Engine().Get(ctx, s.Name(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return errors.Wrap(errNotFound, args[0])
			}
			val, err := loadValue(s, args[0], entry)
			if err != nil {
				return errors.Wrap(err, args[0])
			}
			a.out.Printf("%s", val)
			return nil
		}),
	}
}

func (a *app) setCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value at key",
		Long: "Store a value at key. Dates are RFC 3339, data is base64 and objects are JSON " +
			"objects or arrays.",
		Args: cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("type")
			kind, ok := cache.ParseKind(name)
			if !ok {
				return errors.Newf("unknown type %q", name)
			}
			s := a.space(cmd)
			if err := storeValue(s, args[0], kind, args[1]); err != nil {
				return err
			}
			if !s.Contains(args[0]) {
				return errors.Newf("%s was not stored", args[0])
			}
			a.out.Success("stored %s in %s", args[0], s.Name())
			return nil
		}),
	}
	cmd.Flags().StringP("type", "t", cache.KindString.String(),
		"value type: bool, int32, uint32, int64, uint64, float, double, string, date, data or object")
	return cmd
}

func (a *app) keysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys of a space",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s := a.space(cmd)
			keys := s.Keys()
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				found, entry, err := a.reg.Engine().Get(ctx, s.Name(), key)
				if err != nil {
					return err
				}
				if !found {
					continue
				}
				rows = append(rows, []string{key, entry.Kind.String(), entry.Class})
			}
			a.out.Table([]string{"Key", "Type", "Class"}, rows)
			return nil
		}),
	}
}

func (a *app) countCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of keys in a space",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			a.out.Printf("%d", a.space(cmd).Count())
			return nil
		}),
	}
}

func (a *app) rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>...",
		Aliases: []string{"remove"},
		Short:   "Remove keys from a space",
		Args:    cobra.MinimumNArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s := a.space(cmd)
			s.RemoveKeys(args...)
			a.out.Success("removed %d key(s) from %s", len(args), s.Name())
			return nil
		}),
	}
}

func (a *app) clearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every key of a space",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s := a.space(cmd)
			force, _ := cmd.Flags().GetBool("force")
			if !force && !a.out.Confirm(a.log, fmt.Sprintf("Remove all %d keys of %s?", s.Count(), s.Name()), false) {
				if !a.out.Interactive() {
					return errors.New("refusing to clear without --force")
				}
				return nil
			}
			if err := a.out.Spin(ctx, "Clearing "+s.Name(), func() error {
				return a.reg.Engine().RemoveAll(ctx, s.Name())
			}); err != nil {
				return err
			}
			a.out.Success("cleared %s", s.Name())
			return nil
		}),
	}
	cmd.Flags().BoolP("force", "f", false, "do not ask for confirmation")
	return cmd
}

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show where the cache lives and how much space it uses",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			e := a.reg.Engine()
			s := a.space(cmd)
			a.out.Field("Path", e.Path())
			a.out.Field("Space", s.Name())
			a.out.Field("Keys", s.Count())

			var size uint64
			matches, _ := filepath.Glob(filepath.Join(e.Path(), engine.DiskFile+"*"))
			for _, fn := range matches {
				if fi, err := os.Stat(fn); err == nil {
					size += uint64(fi.Size())
				}
			}
			a.out.Field("Disk tier", humanize.IBytes(size))

			if q := a.cfg.DiskQuotaBytes; !q.IsZero() {
				quota := uint64(q.Value())
				a.out.Field("Quota", humanize.IBytes(quota))
				if size > quota {
					a.out.Warning("disk tier is over its quota by %s", humanize.IBytes(size-quota))
				}
			}

			usage, err := disk.UsageWithContext(ctx, e.Path())
			if err != nil {
				a.log.Debug("disk usage of %s: %s", e.Path(), err)
				return nil
			}
			a.out.Field("Volume", fmt.Sprintf("%s free of %s (%s%% used)",
				humanize.IBytes(usage.Free), humanize.IBytes(usage.Total),
				strconv.FormatFloat(usage.UsedPercent, 'f', 1, 64)))
			return nil
		}),
	}
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with the config file",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(cmd); err != nil {
				a.out.Error("%s", err)
				return err
			}
			cfg := *a.cfg
			if cfg.Path == "" {
				cfg.Path = engine.DefaultPath()
			}
			buf, err := cfg.Marshal()
			if err != nil {
				return err
			}
			a.out.Printf("%s", bytes.TrimRight(buf, "\n"))
			return nil
		},
	}
	initCmd := &cobra.Command{
		Use:   "init <file>",
		Short: "Write a config file with the default settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return errors.Newf("%s already exists", args[0])
			}
			cfg := &config.Config{
				Path:         engine.DefaultPath(),
				LogLevel:     "info",
				ExpiryCheck:  config.Duration(cache.DefaultExpiryCheck),
				QueryTimeout: config.Duration(cache.DefaultQueryTimeout),
				Shards:       cache.DefaultShards,
			}
			if err := cfg.Save(args[0]); err != nil {
				return err
			}
			a.out.Success("wrote %s", args[0])
			return nil
		},
	}
	cmd.AddCommand(show, initCmd)
	return cmd
}
