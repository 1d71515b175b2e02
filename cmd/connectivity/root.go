package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yungbote/connectivity-demand/internal/app"
	"github.com/yungbote/connectivity-demand/internal/categorical"
	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/platform/gcp"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/platform/shutdown"
)

// Injected via ldflags.
var version = "dev"

type rootOptions struct {
	configPath string
	envFiles   []string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "connectivity",
		Short:         "Connectivity demand prediction service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range opts.envFiles {
				// Missing .env files are normal outside local development.
				_ = godotenv.Load(f)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default: $CONN_CONFIG_PATH or ./config/config.yaml)")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env.local", ".env"}, "dotenv files to load before reading config")

	cmd.AddCommand(newServeCommand(opts), newTablesCommand(opts))
	return cmd
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Version = version
	return cfg, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP prediction API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			ctx, stop := shutdown.NotifyContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, log, cfg)
			if err != nil {
				log.Error("Startup failed", "error", err)
				return err
			}
			defer a.Close(context.Background())

			return a.Run(ctx)
		},
	}
}

func newTablesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Print the category encoding tables derived from the reference dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			ctx := cmd.Context()
			store, err := objectStoreFor(ctx, log, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			tables, err := app.LoadTables(ctx, log, cfg, gcp.Opener{Store: store})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range []*categorical.Table{tables.Owner, tables.Type} {
				fmt.Fprintf(w, "%s\n", t.Name())
				for code := 0; code < t.Len(); code++ {
					v, _ := t.Decode(code)
					fmt.Fprintf(w, "  %d\t%s\n", code, v)
				}
			}
			return w.Flush()
		},
	}
}

// objectStoreFor opens GCS only when the reference dataset lives there.
func objectStoreFor(ctx context.Context, log *logger.Logger, cfg *config.Config) (gcp.ObjectStore, error) {
	if cfg.Reference.Source != "csv" || !strings.HasPrefix(cfg.Reference.Path, "gs://") {
		return nil, nil
	}
	storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.GCS.CredentialsFile, cfg.GCS.EmulatorHost)
	if err != nil {
		return nil, err
	}
	return gcp.NewObjectStore(ctx, log, storageCfg)
}
