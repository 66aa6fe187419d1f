package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

const (
	testUID      = "user123"
	testRecordID = "3f0c5a8e-1b2d-4c6e-9f10-aabbccddeeff"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "canonical v4", in: testRecordID, want: testRecordID},
		{name: "uppercase normalized", in: strings.ToUpper(testRecordID), want: testRecordID},
		{name: "surrounding spaces", in: "  " + testRecordID + " ", want: testRecordID},
		{name: "empty", in: "", wantErr: true},
		{name: "not a uuid", in: "../../etc/passwd", wantErr: true},
		{name: "urn form rejected", in: "urn:uuid:" + testRecordID, wantErr: true},
		{name: "braced form rejected", in: "{" + testRecordID + "}", wantErr: true},
		{name: "version 1 rejected", in: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecordID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("RecordID(%q) expected error, got %q", tt.in, got)
				}
				var vErr *Error
				if err != nil && !errors.As(err, &vErr) {
					t.Errorf("RecordID(%q) error type = %T, want *Error", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RecordID(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("RecordID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "simple", in: "s1"},
		{name: "dash and underscore", in: "script_01-a"},
		{name: "max length", in: "a" + strings.Repeat("b", 99)},
		{name: "too long", in: "a" + strings.Repeat("b", 100), wantErr: true},
		{name: "leading dash", in: "-abc", wantErr: true},
		{name: "slash", in: "a/b", wantErr: true},
		{name: "dot", in: "a.b", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Slug("script_id", tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Slug(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name        string
		ext         string
		contentType string
		want        string
		wantErr     bool
	}{
		{name: "webm exact", ext: "webm", contentType: "audio/webm", want: "audio/webm"},
		{name: "codec params stripped", ext: "webm", contentType: "audio/webm;codecs=opus", want: "audio/webm"},
		{name: "dot and case", ext: ".M4A", contentType: "AUDIO/MP4", want: "audio/mp4"},
		{name: "empty content type resolves", ext: "wav", contentType: "", want: "audio/wav"},
		{name: "mismatch", ext: "webm", contentType: "audio/ogg", wantErr: true},
		{name: "unknown ext", ext: "exe", contentType: "application/octet-stream", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ContentType(tt.ext, tt.contentType)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ContentType(%q, %q) expected error", tt.ext, tt.contentType)
				}
				return
			}
			if err != nil {
				t.Fatalf("ContentType() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRawPath(t *testing.T) {
	tests := []struct {
		name    string
		uid     string
		path    string
		wantExt string
		wantErr bool
	}{
		{name: "valid", uid: testUID, path: "raw/user123/" + testRecordID + ".webm", wantExt: "webm"},
		{name: "other tenant", uid: testUID, path: "raw/other/" + testRecordID + ".webm", wantErr: true},
		{name: "empty caller uid", uid: "", path: "raw//" + testRecordID + ".webm", wantErr: true},
		{name: "wrong prefix", uid: testUID, path: "processed/user123/" + testRecordID + ".webm", wantErr: true},
		{name: "traversal", uid: testUID, path: "raw/user123/../" + testRecordID + ".webm", wantErr: true},
		{name: "extra segment", uid: testUID, path: "raw/user123/x/" + testRecordID + ".webm", wantErr: true},
		{name: "id mismatch", uid: testUID, path: "raw/user123/" + uuid.NewString() + ".webm", wantErr: true},
		{name: "double extension", uid: testUID, path: "raw/user123/" + testRecordID + ".webm.exe", wantErr: true},
		{name: "uppercase extension", uid: testUID, path: "raw/user123/" + testRecordID + ".WEBM", wantErr: true},
		{name: "disallowed extension", uid: testUID, path: "raw/user123/" + testRecordID + ".exe", wantErr: true},
		{name: "query string", uid: testUID, path: "raw/user123/" + testRecordID + ".webm?x=1", wantErr: true},
		{name: "leading slash", uid: testUID, path: "/raw/user123/" + testRecordID + ".webm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RawPath(tt.uid, testRecordID, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("RawPath(%q) expected error, got %+v", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("RawPath(%q) unexpected error: %v", tt.path, err)
			}
			if got.Ext != tt.wantExt {
				t.Errorf("RawPath() ext = %q, want %q", got.Ext, tt.wantExt)
			}
			if got.Path != tt.path {
				t.Errorf("RawPath() path = %q, want %q", got.Path, tt.path)
			}
		})
	}
}

func TestAvatarPath(t *testing.T) {
	avatarID := uuid.NewString()
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "valid", path: BuildAvatarPath(testUID, avatarID)},
		{name: "png rejected", path: "avatars/user123/" + avatarID + ".png", wantErr: true},
		{name: "other tenant", path: BuildAvatarPath("other", avatarID), wantErr: true},
		{name: "id mismatch", path: BuildAvatarPath(testUID, uuid.NewString()), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AvatarPath(testUID, avatarID, tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("AvatarPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestBuildRawPath_RoundTrip(t *testing.T) {
	for ext := range audioContentTypes {
		path := BuildRawPath(testUID, testRecordID, "."+strings.ToUpper(ext))
		got, err := RawPath(testUID, testRecordID, path)
		if err != nil {
			t.Errorf("RawPath(BuildRawPath(%q)) error = %v", ext, err)
			continue
		}
		if got.Ext != ext {
			t.Errorf("RawPath(BuildRawPath(%q)) ext = %q", ext, got.Ext)
		}
	}
}

// FuzzRawPath checks that any accepted path is exactly the one the builder
// would produce for the same caller and record.
func FuzzRawPath(f *testing.F) {
	f.Add(testUID, "raw/user123/"+testRecordID+".webm")
	f.Add(testUID, "raw/user123/../x.webm")
	f.Add("a", "raw/a/"+testRecordID+".ogg")
	f.Add("", "raw//.wav")

	f.Fuzz(func(t *testing.T, uid, path string) {
		got, err := RawPath(uid, testRecordID, path)
		if err != nil {
			return
		}
		if want := BuildRawPath(uid, testRecordID, got.Ext); path != want {
			t.Fatalf("RawPath accepted %q, canonical form is %q", path, want)
		}
		if strings.Contains(path, "..") {
			t.Fatalf("RawPath accepted traversal %q", path)
		}
	})
}
