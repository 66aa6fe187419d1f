package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Mapping ties a prompt to the phoneme sequence its recordings are filed under.
type Mapping struct {
	PromptID    string
	PromptText  string
	PhonemeSeq  string
	PhonemeSlug string
}

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9_-]+`)
	slugUnderscore = regexp.MustCompile(`_+`)
)

// Slug normalizes value into a directory and file name fragment. When nothing
// usable is left, the fallback is lowercased with dashes turned into
// underscores.
func Slug(value, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = strings.ReplaceAll(s, " ", "_")
	s = slugInvalid.ReplaceAllString(s, "_")
	s = strings.Trim(slugUnderscore.ReplaceAllString(s, "_"), "_")
	if s != "" {
		return s
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(fallback)), "-", "_")
}

// LoadMappingFile reads a mapping CSV from disk.
func LoadMappingFile(path string) (map[string]Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping csv: %w", err)
	}
	defer f.Close()

	return LoadMapping(f)
}

// LoadMapping parses a mapping CSV keyed by prompt_id. The prompt_id,
// prompt_text and phoneme_seq columns are required; phoneme_slug is optional
// and defaults to phoneme_seq.
func LoadMapping(r io.Reader) (map[string]Mapping, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("mapping csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	var missing []string
	for _, name := range []string{"prompt_id", "prompt_text", "phoneme_seq"} {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("mapping csv is missing required columns: %s", strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make(map[string]Mapping)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mapping csv: %w", err)
		}

		m := Mapping{
			PromptID:   field(row, "prompt_id"),
			PromptText: field(row, "prompt_text"),
			PhonemeSeq: field(row, "phoneme_seq"),
		}
		switch {
		case m.PromptID == "":
			return nil, fmt.Errorf("row %d: prompt_id is required", line)
		case m.PromptText == "":
			return nil, fmt.Errorf("row %d: prompt_text is required", line)
		case m.PhonemeSeq == "":
			return nil, fmt.Errorf("row %d: phoneme_seq is required", line)
		}
		if _, dup := out[m.PromptID]; dup {
			return nil, fmt.Errorf("row %d: duplicate prompt_id '%s'", line, m.PromptID)
		}

		raw := field(row, "phoneme_slug")
		if raw == "" {
			raw = m.PhonemeSeq
		}
		m.PhonemeSlug = Slug(raw, m.PromptID)
		out[m.PromptID] = m
	}
	return out, nil
}
