// Package export converts registered recordings into a 16 kHz mono WAV
// dataset grouped by phoneme sequence, with a CSV manifest of every record
// it looked at.
package export

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_object_source.go -package=mocks moracollect-api/internal/export ObjectSource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/model"
)

// Manifest row statuses.
const (
	RowExported = "exported"
	RowSkipped  = "skipped"
	RowFailed   = "failed"
)

// ManifestHeader is the column order of the manifest CSV.
var ManifestHeader = []string{
	"record_id", "uid", "script_id", "prompt_id", "prompt_text", "phoneme_seq",
	"phoneme_slug", "raw_path", "wav_path_local", "status", "error", "created_at",
}

// ObjectSource reads raw uploads from blob storage.
type ObjectSource interface {
	// Download copies the object at path into w. A missing object is an
	// error wrapping fs.ErrNotExist.
	Download(ctx context.Context, path string, w io.Writer) error
}

// Converter turns a raw upload into a WAV file.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// FFmpeg converts with the ffmpeg binary.
type FFmpeg struct {
	// Path defaults to "ffmpeg" looked up in PATH.
	Path string
}

func (f FFmpeg) binary() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

// Check fails when the binary cannot be found.
func (f FFmpeg) Check() error {
	if _, err := exec.LookPath(f.binary()); err != nil {
		return fmt.Errorf("ffmpeg is not installed or not in PATH: %w", err)
	}
	return nil
}

// Convert writes dst as 16 kHz mono signed 16-bit PCM.
func (f FFmpeg) Convert(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, f.binary(),
		"-y", "-i", src,
		"-ac", "1", "-ar", "16000", "-sample_fmt", "s16",
		dst,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("ffmpeg failed: %s", msg)
	}
	return nil
}

// MissingMapping counts records whose prompt is not in mapping.
func MissingMapping(records []model.Record, mapping map[string]Mapping) int {
	n := 0
	for _, r := range records {
		if _, ok := mapping[r.PromptID]; !ok {
			n++
		}
	}
	return n
}

// Summary reports the outcome of a run.
type Summary struct {
	Total    int
	Exported int
	Skipped  int
	Failed   int
	Manifest string
	// TempDir is set when raw downloads were kept.
	TempDir string
}

// Exporter downloads and converts records into OutDir/wav/{slug}/ and writes
// OutDir/manifests/export_{timestamp}.csv.
type Exporter struct {
	Objects     ObjectSource
	Converter   Converter
	OutDir      string
	Overwrite   bool
	KeepTempRaw bool
	Now         func() time.Time
}

func (e *Exporter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run exports records. A record that cannot be exported gets a failed
// manifest row and does not stop the run; only manifest, directory and
// context errors are returned.
func (e *Exporter) Run(ctx context.Context, records []model.Record, mapping map[string]Mapping) (Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)

	wavRoot := filepath.Join(e.OutDir, "wav")
	manifestDir := filepath.Join(e.OutDir, "manifests")
	for _, dir := range []string{wavRoot, manifestDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Summary{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	sum := Summary{
		Total:    len(records),
		Manifest: filepath.Join(manifestDir, "export_"+e.now().UTC().Format("20060102_150405Z")+".csv"),
	}
	f, err := os.Create(sum.Manifest)
	if err != nil {
		return Summary{}, fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ManifestHeader); err != nil {
		return Summary{}, fmt.Errorf("write manifest: %w", err)
	}

	tempRoot, err := os.MkdirTemp("", "moracollect_export_raw_")
	if err != nil {
		return Summary{}, fmt.Errorf("create temp dir: %w", err)
	}
	if e.KeepTempRaw {
		sum.TempDir = tempRoot
	} else {
		defer os.RemoveAll(tempRoot)
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			w.Flush()
			return sum, err
		}

		row := e.export(ctx, r, mapping, wavRoot, tempRoot)
		switch row.status {
		case RowExported:
			sum.Exported++
		case RowSkipped:
			sum.Skipped++
		default:
			sum.Failed++
			logger.Warn("record export failed", "record_id", r.RecordID, "error", row.err)
		}
		if err := w.Write(row.fields(r)); err != nil {
			return sum, fmt.Errorf("write manifest: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return sum, fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return sum, fmt.Errorf("close manifest: %w", err)
	}
	return sum, nil
}

type manifestRow struct {
	mapping Mapping
	text    string
	wavPath string
	status  string
	err     string
}

func (m manifestRow) fields(r model.Record) []string {
	created := ""
	if r.CreatedAt != nil {
		created = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		r.RecordID, r.UID, r.ScriptID, r.PromptID, m.text, m.mapping.PhonemeSeq,
		m.mapping.PhonemeSlug, r.RawPath, m.wavPath, m.status, m.err, created,
	}
}

func (e *Exporter) export(ctx context.Context, r model.Record, mapping map[string]Mapping, wavRoot, tempRoot string) manifestRow {
	m, ok := mapping[r.PromptID]
	if !ok {
		return manifestRow{status: RowFailed, err: fmt.Sprintf("prompt_id '%s' is not in mapping CSV", r.PromptID)}
	}

	row := manifestRow{mapping: m, text: strings.TrimSpace(r.PromptText)}
	if row.text == "" {
		row.text = m.PromptText
	}

	uid := r.UID
	if uid == "" {
		uid = "unknown_uid"
	}
	dir := filepath.Join(wavRoot, m.PhonemeSlug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		row.status, row.err = RowFailed, err.Error()
		return row
	}
	row.wavPath = filepath.Join(dir, fmt.Sprintf("%s__%s__%s.wav", m.PhonemeSlug, uid, r.RecordID))

	if _, err := os.Stat(row.wavPath); err == nil && !e.Overwrite {
		row.status, row.err = RowSkipped, "wav already exists (use --overwrite)"
		return row
	}

	ext := filepath.Ext(r.RawPath)
	if ext == "" {
		ext = ".raw"
	}
	rawPath := filepath.Join(tempRoot, r.RecordID+ext)
	if !e.KeepTempRaw {
		defer os.Remove(rawPath)
	}

	if err := e.download(ctx, r.RawPath, rawPath); err != nil {
		row.status = RowFailed
		if errors.Is(err, fs.ErrNotExist) {
			row.err = "raw object not found"
		} else {
			row.err = err.Error()
		}
		return row
	}
	if err := e.Converter.Convert(ctx, rawPath, row.wavPath); err != nil {
		row.status, row.err = RowFailed, err.Error()
		return row
	}
	row.status = RowExported
	return row
}

func (e *Exporter) download(ctx context.Context, src, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := e.Objects.Download(ctx, src, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
