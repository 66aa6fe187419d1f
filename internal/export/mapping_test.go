package export_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"moracollect-api/internal/export"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback string
		want     string
	}{
		{name: "spaces", value: " K A ", fallback: "p1", want: "k_a"},
		{name: "symbols collapse", value: "a..i//u", fallback: "p1", want: "a_i_u"},
		{name: "dash kept", value: "ky-a", fallback: "p1", want: "ky-a"},
		{name: "non ascii", value: "あ", fallback: "Prompt-01", want: "prompt_01"},
		{name: "empty", value: "", fallback: "p-2", want: "p_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := export.Slug(tt.value, tt.fallback); got != tt.want {
				t.Errorf("Slug(%q, %q) = %q, want %q", tt.value, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestLoadMapping(t *testing.T) {
	csv := "prompt_id,prompt_text,phoneme_seq,phoneme_slug\n" +
		"p1,あ,a,\n" +
		"p2, か ,k a,KA!\n"

	got, err := export.LoadMapping(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadMapping() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if m := got["p1"]; m.PhonemeSlug != "a" || m.PromptText != "あ" || m.PhonemeSeq != "a" {
		t.Errorf("p1 = %+v", m)
	}
	if m := got["p2"]; m.PhonemeSlug != "ka" || m.PromptText != "か" || m.PhonemeSeq != "k a" {
		t.Errorf("p2 = %+v", m)
	}
}

func TestLoadMapping_OptionalSlugColumn(t *testing.T) {
	got, err := export.LoadMapping(strings.NewReader("phoneme_seq,prompt_id,prompt_text\nk i,p3,き\n"))
	if err != nil {
		t.Fatalf("LoadMapping() error = %v", err)
	}
	if m := got["p3"]; m.PhonemeSlug != "k_i" {
		t.Errorf("PhonemeSlug = %q, want k_i", m.PhonemeSlug)
	}
}

func TestLoadMapping_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{name: "empty", csv: "", wantErr: "mapping csv is empty"},
		{name: "missing columns", csv: "prompt_id\np1\n", wantErr: "missing required columns: phoneme_seq, prompt_text"},
		{name: "missing prompt id", csv: "prompt_id,prompt_text,phoneme_seq\n,あ,a\n", wantErr: "row 2: prompt_id is required"},
		{name: "missing text", csv: "prompt_id,prompt_text,phoneme_seq\np1,a,a\np2, ,i\n", wantErr: "row 3: prompt_text is required"},
		{name: "missing phonemes", csv: "prompt_id,prompt_text,phoneme_seq\np1,あ\n", wantErr: "row 2: phoneme_seq is required"},
		{name: "duplicate", csv: "prompt_id,prompt_text,phoneme_seq\np1,あ,a\np1,い,i\n", wantErr: "row 3: duplicate prompt_id 'p1'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := export.LoadMapping(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("LoadMapping() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMappingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.csv")
	if err := os.WriteFile(path, []byte("\ufeffprompt_id,prompt_text,phoneme_seq\np1,あ,a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := export.LoadMappingFile(path)
	if err != nil {
		t.Fatalf("LoadMappingFile() error = %v", err)
	}
	if _, ok := got["p1"]; !ok {
		t.Errorf("p1 missing from %v", got)
	}

	if _, err := export.LoadMappingFile(filepath.Join(t.TempDir(), "none.csv")); err == nil {
		t.Error("LoadMappingFile(missing) error = nil")
	}
}
