// Package validate normalizes and checks caller-supplied identifiers and
// object storage paths. Every function here is pure: no I/O, no clocks.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Error describes a rejected input field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,99}$`)

// audioContentTypes maps an allowed raw upload extension to the content type
// the upload must be declared with.
var audioContentTypes = map[string]string{
	"webm": "audio/webm",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
}

const (
	// AvatarExt is the only extension accepted for avatar objects.
	AvatarExt = "webp"
	// AvatarContentType is the content type avatar uploads must use.
	AvatarContentType = "image/webp"

	rawPrefix    = "raw"
	avatarPrefix = "avatars"
)

// RecordID returns the canonical lowercase form of a version 4 UUID.
func RecordID(raw string) (string, error) {
	return uuidV4("record_id", raw)
}

// AvatarID returns the canonical lowercase form of a version 4 UUID avatar id.
func AvatarID(raw string) (string, error) {
	return uuidV4("avatar_id", raw)
}

func uuidV4(field, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid(field, "is required")
	}
	// uuid.Parse also accepts urn and braced forms; only the plain 36 char form is allowed.
	if len(s) != 36 {
		return "", invalid(field, "must be a UUID")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", invalid(field, "must be a UUID")
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return "", invalid(field, "must be a version 4 UUID")
	}
	return id.String(), nil
}

// Slug checks a script or prompt identifier.
func Slug(field, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid(field, "is required")
	}
	if !slugPattern.MatchString(s) {
		return "", invalid(field, "must match %s", slugPattern.String())
	}
	return s, nil
}

// UID checks the caller uid before it is embedded into an object path.
func UID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid("uid", "is required")
	}
	if len(s) > 128 || strings.ContainsAny(s, "/\\.") {
		return "", invalid("uid", "contains characters not allowed in a path segment")
	}
	return s, nil
}

// NormalizeExt lowercases an extension and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// NormalizeContentType lowercases a media type and drops parameters such as
// ";codecs=opus".
func NormalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// AudioContentType returns the content type required for a raw upload
// extension.
func AudioContentType(ext string) (string, error) {
	ct, ok := audioContentTypes[NormalizeExt(ext)]
	if !ok {
		return "", invalid("ext", "%q is not an allowed audio extension", ext)
	}
	return ct, nil
}

// ContentType verifies that contentType is the one required for ext.
// An empty contentType is accepted and resolves to the required type.
func ContentType(ext, contentType string) (string, error) {
	want, err := AudioContentType(ext)
	if err != nil {
		return "", err
	}
	got := NormalizeContentType(contentType)
	if got != "" && got != want {
		return "", invalid("content_type", "%q does not match extension %q (want %s)", got, NormalizeExt(ext), want)
	}
	return want, nil
}

// BuildRawPath returns raw/{uid}/{record_id}.{ext}.
func BuildRawPath(uid, recordID, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", rawPrefix, uid, recordID, NormalizeExt(ext))
}

// BuildAvatarPath returns avatars/{uid}/{avatar_id}.webp.
func BuildAvatarPath(uid, avatarID string) string {
	return fmt.Sprintf("%s/%s/%s.%s", avatarPrefix, uid, avatarID, AvatarExt)
}

// RawObject is a parsed and verified raw upload path.
type RawObject struct {
	Path        string
	Ext         string
	ContentType string
}

// RawPath verifies that path is exactly raw/{uid}/{recordID}.{ext} for the
// authenticated uid and the declared record id.
func RawPath(uid, recordID, path string) (RawObject, error) {
	file, err := ownedObject("raw_path", rawPrefix, uid, path)
	if err != nil {
		return RawObject{}, err
	}
	stem, ext, ok := strings.Cut(file, ".")
	if !ok || stem == "" || ext == "" {
		return RawObject{}, invalid("raw_path", "file name must be {record_id}.{ext}")
	}
	if stem != recordID {
		return RawObject{}, invalid("raw_path", "file name does not match record_id")
	}
	if ext != NormalizeExt(ext) {
		return RawObject{}, invalid("raw_path", "extension must be lowercase")
	}
	ct, err := AudioContentType(ext)
	if err != nil {
		return RawObject{}, invalid("raw_path", "extension %q is not allowed", ext)
	}
	return RawObject{Path: path, Ext: ext, ContentType: ct}, nil
}

// AvatarPath verifies that path is exactly avatars/{uid}/{avatarID}.webp.
func AvatarPath(uid, avatarID, path string) (string, error) {
	file, err := ownedObject("avatar_path", avatarPrefix, uid, path)
	if err != nil {
		return "", err
	}
	if file != avatarID+"."+AvatarExt {
		return "", invalid("avatar_path", "file name must be {avatar_id}.webp")
	}
	return path, nil
}

// ownedObject splits prefix/{uid}/{file} and checks every segment. The file
// name is returned for caller specific checks.
func ownedObject(field, prefix, uid, path string) (string, error) {
	if path == "" {
		return "", invalid(field, "is required")
	}
	if strings.ContainsAny(path, "\\?#%") || strings.TrimSpace(path) != path {
		return "", invalid(field, "contains disallowed characters")
	}
	parts := strings.Split(path, "/")
	if len(parts) != 3 {
		return "", invalid(field, "must be %s/{uid}/{file}", prefix)
	}
	if parts[0] != prefix {
		return "", invalid(field, "must start with %s/", prefix)
	}
	if clean, err := UID(uid); err != nil || clean != uid || parts[1] != uid {
		return "", invalid(field, "uid segment does not match caller")
	}
	file := parts[2]
	if file == "" || file == "." || file == ".." || strings.Count(file, ".") != 1 {
		return "", invalid(field, "invalid file name")
	}
	return file, nil
}
