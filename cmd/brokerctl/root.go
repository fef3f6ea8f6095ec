package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-token-broker/cache"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/sessions"
	"github.com/spf13/cobra"
)

// options are the connection flags shared by every command. Defaults come
// from the same environment variables the server reads.
type options struct {
	redisURL      string
	index         int
	prefix        string
	encryptionKey string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults, err := config.New()
	if err != nil {
		defaults, _ = config.NewFromMap(nil)
	}

	rootCmd := &cobra.Command{
		Use:           "brokerctl",
		Short:         "Inspect and manage the token broker's store",
		Long:          `brokerctl talks to the same redis the broker uses: list keys, read raw values and hash fields, inspect or revoke sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.redisURL, "redis-url", defaults.GetRedisURL(), "Redis URL or host:port")
	flags.IntVar(&opts.index, "index", defaults.GetRedisIndex(), "Redis database index (-1 keeps the URL's)")
	flags.StringVar(&opts.prefix, "prefix", defaults.GetRedisKeyPrefix(), "Key namespace prefix")
	flags.StringVar(&opts.encryptionKey, "encryption-key", defaults.GetSessionEncryptionKey(), "Session encryption key, when sessions are sealed")

	rootCmd.AddCommand(
		newKeysCmd(opts),
		newExistsCmd(opts),
		newGetCmd(opts),
		newDelCmd(opts),
		newHGetCmd(opts),
		newHExistsCmd(opts),
		newExpireCmd(opts),
		newInspectCmd(opts),
		newRevokeCmd(opts),
	)
	return rootCmd
}

// withStore opens a client for the duration of fn.
func (o *options) withStore(ctx context.Context, fn func(store *cache.Client) error) error {
	store, err := cache.New(o.redisURL, cache.WithPrefix(o.prefix))
	if err != nil {
		return err
	}
	defer store.Close()

	if o.index >= 0 {
		if err := store.SelectIndex(ctx, o.index); err != nil {
			return err
		}
	}
	return fn(store)
}

func (o *options) broker(store *cache.Client) (*sessions.Broker, error) {
	if o.encryptionKey == "" {
		return sessions.NewBroker(store), nil
	}
	key, err := sessions.ParseKey(o.encryptionKey)
	if err != nil {
		return nil, err
	}
	codec, err := sessions.NewSealedCodec(key, sessions.JSONCodec{})
	if err != nil {
		return nil, err
	}
	return sessions.NewBroker(store, sessions.WithCodec(codec)), nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
