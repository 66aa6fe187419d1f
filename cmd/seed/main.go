// Command seed writes the script and prompt catalog into the document store.
//
// Usage:
//
//	seed --scripts infra/seeds/scripts.json --prompts infra/seeds/prompts.json [--prune]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"moracollect-api/internal/config"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/gcp"
	"moracollect-api/internal/seed"
	"moracollect-api/internal/storage"
)

var (
	scriptsPath string
	promptsPath string
	prune       bool
	dryRun      bool
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed scripts and prompts",
	Long: `Validates the scripts and prompts seed files and merges them into the
configured document store. With --prune, catalog documents that are not in
the seed files are deleted.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSeed,
}

func init() {
	rootCmd.Flags().StringVar(&scriptsPath, "scripts", "infra/seeds/scripts.json", "scripts seed file")
	rootCmd.Flags().StringVar(&promptsPath, "prompts", "infra/seeds/prompts.json", "prompts seed file")
	rootCmd.Flags().BoolVar(&prune, "prune", false, "delete scripts and prompts missing from the seed files")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the seed files without writing")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	catalog, err := seed.LoadFiles(scriptsPath, promptsPath)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Seed files valid: scripts=%d, prompts=%d\n", len(catalog.Scripts), len(catalog.Prompts))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx := cmd.Context()
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = closer.Close()
	}()

	res, err := seed.Apply(ctx, store, catalog, prune)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"Seed completed: scripts=%d, prompts=%d, deleted_scripts=%d, deleted_prompts=%d, backend=%s\n",
		res.Scripts, res.Prompts, res.DeletedScripts, res.DeletedPrompts, cfg.DocstoreBackend)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, io.Closer, error) {
	if cfg.DocstoreBackend == config.BackendFirestore {
		fs, err := gcp.NewFirestoreStore(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	}
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	ds := storage.NewDocumentStore(db)
	return ds, ds, nil
}
