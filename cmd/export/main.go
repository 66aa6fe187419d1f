// Command export downloads registered recordings, converts them to 16 kHz
// mono WAV files grouped by phoneme sequence and writes a CSV manifest.
//
// Usage:
//
//	export --bucket moracollect-raw --mapping-csv prompts_phonemes.csv [--since 2026-01-01T00:00:00Z] [--dry-run]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"moracollect-api/internal/config"
	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/export"
	"moracollect-api/internal/gcp"
	"moracollect-api/internal/storage"
)

var (
	bucketName  string
	mappingCSV  string
	outDir      string
	limit       int
	uid         string
	scriptID    string
	promptID    string
	since       string
	until       string
	overwrite   bool
	keepTempRaw bool
	dryRun      bool
)

var rootCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recordings as a WAV dataset",
	Long: `Selects uploaded and processed records from the configured document store,
downloads their raw audio from Cloud Storage and converts each one with ffmpeg
to out-dir/wav/{phoneme_slug}/. Every selected record gets a row in
out-dir/manifests/export_{timestamp}.csv. With --dry-run only the selection is
reported.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runExport,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&bucketName, "bucket", "", "Cloud Storage bucket holding the raw uploads (default GCS_BUCKET)")
	f.StringVar(&mappingCSV, "mapping-csv", "", "CSV with prompt_id, prompt_text, phoneme_seq and optional phoneme_slug")
	f.StringVar(&outDir, "out-dir", "exports", "output directory")
	f.IntVar(&limit, "limit", 0, "maximum number of records, 0 for no limit")
	f.StringVar(&uid, "uid", "", "only export records of this user")
	f.StringVar(&scriptID, "script-id", "", "only export records of this script")
	f.StringVar(&promptID, "prompt-id", "", "only export records of this prompt")
	f.StringVar(&since, "since", "", "only export records created at or after this ISO8601 time")
	f.StringVar(&until, "until", "", "only export records created at or before this ISO8601 time")
	f.BoolVar(&overwrite, "overwrite", false, "replace existing wav files")
	f.BoolVar(&keepTempRaw, "keep-temp-raw", false, "keep downloaded raw files")
	f.BoolVar(&dryRun, "dry-run", false, "report the selection without downloading")
	_ = rootCmd.MarkFlagRequired("mapping-csv")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
}

func buildFilter() (export.Filter, error) {
	filter := export.Filter{UID: uid, ScriptID: scriptID, PromptID: promptID, Limit: limit}
	if since != "" {
		t, err := export.ParseTime(since, "--since")
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}
	if until != "" {
		t, err := export.ParseTime(until, "--until")
		if err != nil {
			return filter, err
		}
		filter.Until = &t
	}
	return filter, filter.Validate()
}

func runExport(cmd *cobra.Command, _ []string) error {
	filter, err := buildFilter()
	if err != nil {
		return err
	}
	mapping, err := export.LoadMappingFile(mappingCSV)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	if bucketName == "" {
		bucketName = cfg.Bucket
	}

	ctx := contextutil.WithLogger(cmd.Context(), logger)
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = closer.Close()
	}()

	records, err := export.Select(ctx, store, filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(out, "Dry run summary: total=%d, missing_mapping=%d, backend=%s, bucket=%s\n",
			len(records), export.MissingMapping(records, mapping), cfg.DocstoreBackend, bucketName)
		return nil
	}

	ffmpeg := export.FFmpeg{}
	if err := ffmpeg.Check(); err != nil {
		return err
	}
	bucket, err := gcp.NewBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	defer func() {
		_ = bucket.Close()
	}()

	exporter := &export.Exporter{
		Objects:     bucket,
		Converter:   ffmpeg,
		OutDir:      outDir,
		Overwrite:   overwrite,
		KeepTempRaw: keepTempRaw,
	}
	sum, err := exporter.Run(ctx, records, mapping)
	if err != nil {
		return err
	}
	if sum.TempDir != "" {
		fmt.Fprintf(out, "Temporary raw files kept at: %s\n", sum.TempDir)
	}
	fmt.Fprintf(out, "Export summary: total=%d, exported=%d, skipped=%d, failed=%d\n",
		sum.Total, sum.Exported, sum.Skipped, sum.Failed)
	fmt.Fprintf(out, "Manifest: %s\n", sum.Manifest)
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
