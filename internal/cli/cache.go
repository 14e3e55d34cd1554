package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splitq/internal/cache"
	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/store"
)

// CacheEntryResult is the JSON payload of cache put and cache get.
type CacheEntryResult struct {
	Key  string          `json:"key"`
	Rows int             `json:"rows"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CacheKeysResult is the JSON payload of cache keys.
type CacheKeysResult struct {
	Keys []string `json:"keys"`
}

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Database string
}

// NewCacheCommand creates the cache command and its put, get and keys
// subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and fill the persistent result cache",
		Long: `Store and read datasets in the SQLite result cache, keyed by the filter
expression the rows satisfy.

The database is taken from --db, then cache.path in the config file, then
` + DefaultCachePath + ` in the working directory. It is created if missing.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite cache database")

	cmd.AddCommand(&cobra.Command{
		Use:   "put <filter> <rows>",
		Short: "Store rows under a filter key",
		Long: `Store rows under a filter key, replacing any rows already stored under it.

<rows> is a JSON array of objects, "@file" or "-" for stdin.

Example:
  splitq cache put '{"expr":"le","attribute":"x","value":5}' '[{"x":1},{"x":3}]'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCachePut(opts, args[0], args[1], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "get <filter>",
		Short:         "Print the rows stored under a filter key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheGet(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "keys",
		Short:         "List the filter keys in the cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheKeys(opts, cmd)
		},
	})

	return cmd
}

func (o *CacheOptions) path() string {
	if o.Database != "" {
		return o.Database
	}
	return o.config().Cache.Path
}

// openCache opens the configured database. The caller closes the store.
func (o *CacheOptions) openCache(cmd *cobra.Command) (*store.Store, *cache.PersistentStore, error) {
	log := o.logger(cmd.ErrOrStderr())
	log.Debug("opening cache", "path", o.path())
	st, err := store.Open(store.Config{Path: o.path(), Logger: log})
	if err != nil {
		return nil, nil, err
	}
	return st, cache.NewPersistentStore(st), nil
}

func closeStore(opts *CacheOptions, cmd *cobra.Command, st *store.Store) {
	if err := st.Close(); err != nil {
		opts.logger(cmd.ErrOrStderr()).Error("error closing cache", "error", err)
	}
}

func runCachePut(opts *CacheOptions, filterArg, rowsArg string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	key, err := readExpression(filterArg, cmd.InOrStdin())
	if err != nil {
		return failInput(f, err)
	}
	raw, err := readInput(rowsArg, cmd.InOrStdin())
	if err != nil {
		return failInput(f, err)
	}
	data, err := engine.New().Process(raw)
	if err != nil {
		return failOperation(f, "cache put", err)
	}

	st, ps, err := opts.openCache(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open cache", err)
	}
	defer closeStore(opts, cmd, st)

	if err := ps.Put(cmd.Context(), key, data); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to store rows", err)
	}
	return f.Success(
		fmt.Sprintf("stored %d rows under %s", data.Len(), key),
		CacheEntryResult{Key: key.String(), Rows: data.Len()},
	)
}

func runCacheGet(opts *CacheOptions, filterArg string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	key, err := readExpression(filterArg, cmd.InOrStdin())
	if err != nil {
		return failInput(f, err)
	}

	st, ps, err := opts.openCache(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open cache", err)
	}
	defer closeStore(opts, cmd, st)

	data, err := ps.Get(cmd.Context(), key)
	if cache.IsNotFound(err) {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no rows stored under %s", key), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read rows", err)
	}
	rows, err := data.MarshalJSON()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode rows", err)
	}
	return f.Success(string(rows), CacheEntryResult{Key: key.String(), Rows: data.Len(), Data: rows})
}

func runCacheKeys(opts *CacheOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, ps, err := opts.openCache(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open cache", err)
	}
	defer closeStore(opts, cmd, st)

	keys, err := ps.Keys(cmd.Context())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to list keys", err)
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	if len(out) == 0 {
		return f.Success("No cached entries.", CacheKeysResult{Keys: out})
	}
	return f.Success(strings.Join(out, "\n"), CacheKeysResult{Keys: out})
}
