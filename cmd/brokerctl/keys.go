package main

import (
	"sort"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-broker/cache"
	"github.com/spf13/cobra"
)

func newKeysCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [pattern]",
		Short: "List keys matching a glob pattern (default *)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				keys, err := store.SearchKeys(cmd.Context(), pattern)
				if err != nil {
					return err
				}
				sort.Strings(keys)
				for _, k := range keys {
					printf(cmd, "%s\n", k)
				}
				return nil
			})
		},
	}
}

func newExistsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Report whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				ok, err := store.HasKey(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printf(cmd, "%t\n", ok)
				return nil
			})
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the raw value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				value, found, err := store.GetVal(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !found {
					printf(cmd, "(nil)\n")
					return nil
				}
				printf(cmd, "%s\n", value)
				return nil
			})
		},
	}
}

func newDelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>...",
		Short: "Delete one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				n, err := store.ClearKeys(cmd.Context(), args...)
				if err != nil {
					return err
				}
				printf(cmd, "deleted %d\n", n)
				return nil
			})
		},
	}
}

func newExpireCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "expire <key> <duration>",
		Short: "Set a time to live on a key, e.g. 30m",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := time.ParseDuration(args[1])
			if err != nil {
				return err
			}
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				ok, err := store.Expire(cmd.Context(), args[0], ttl)
				if err != nil {
					return err
				}
				printf(cmd, "%t\n", ok)
				return nil
			})
		},
	}
}

func newHGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hget <key> <field>...",
		Short: "Print named fields of a hash",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				values, err := store.HMGetVal(cmd.Context(), args[0], args[1:]...)
				if err != nil {
					return err
				}
				for _, field := range args[1:] {
					v, ok := values[field]
					if !ok {
						v = "(nil)"
					}
					printf(cmd, "%s=%s\n", field, strings.TrimSpace(v))
				}
				return nil
			})
		},
	}
}

func newHExistsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hexists <key> <field>",
		Short: "Report whether a hash field is set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				ok, err := store.HSetFieldExists(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				printf(cmd, "%t\n", ok)
				return nil
			})
		},
	}
}
