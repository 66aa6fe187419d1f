package service

import (
	"errors"
	"testing"

	"moracollect-api/internal/validate"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "field and message",
			err: &ValidationError{
				Field:   "message",
				Message: "cannot be empty",
			},
			want: "validation error on field message: cannot be empty",
		},
		{
			name: "empty field",
			err: &ValidationError{
				Field:   "",
				Message: "invalid",
			},
			want: "validation error on field : invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ValidationError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		msg     string
		wantNil bool
		wantMsg string
	}{
		{
			name:    "nil error",
			err:     nil,
			msg:     "context",
			wantNil: true,
		},
		{
			name:    "wrapped error",
			err:     errors.New("original error"),
			msg:     "context",
			wantNil: false,
			wantMsg: "context: original error",
		},
		{
			name:    "empty message",
			err:     errors.New("original error"),
			msg:     "",
			wantNil: false,
			wantMsg: ": original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapError(tt.err, tt.msg)
			if tt.wantNil {
				if got != nil {
					t.Errorf("WrapError() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Errorf("WrapError() = nil, want error")
				return
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("WrapError() = %v, want %v", got.Error(), tt.wantMsg)
			}
			// Verify error wrapping
			if !errors.Is(got, tt.err) {
				t.Errorf("WrapError() should wrap original error")
			}
		})
	}
}

func TestDetailErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   error
		wantDetail string
	}{
		{name: "not found", err: notFound("Record not found"), wantKind: ErrNotFound, wantDetail: "Record not found"},
		{name: "conflict", err: conflict("record_id already used"), wantKind: ErrConflict, wantDetail: "record_id already used"},
		{name: "forbidden", err: forbidden("not yours"), wantKind: ErrForbidden, wantDetail: "not yours"},
		{name: "wrapped", err: WrapError(notFound("gone"), "delete"), wantKind: ErrNotFound, wantDetail: "gone"},
		{name: "validation", err: &ValidationError{Field: "script_id", Message: "is required"}, wantDetail: "script_id: is required"},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantKind != nil && !errors.Is(tt.err, tt.wantKind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantKind)
			}
			if got := Detail(tt.err); got != tt.wantDetail {
				t.Errorf("Detail() = %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

func TestFromValidate(t *testing.T) {
	_, err := validate.RecordID("nope")
	got := fromValidate(err)

	var ve *ValidationError
	if !errors.As(got, &ve) {
		t.Fatalf("fromValidate() = %T, want *ValidationError", got)
	}
	if ve.Field != "record_id" {
		t.Errorf("Field = %q, want record_id", ve.Field)
	}

	plain := errors.New("boom")
	if fromValidate(plain) != plain {
		t.Error("fromValidate() should pass other errors through")
	}
}
