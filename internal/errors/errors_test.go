package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := New(KindNotFound, "file missing")
	assert.Equal(t, "[NotFound] file missing", err.Error())
}

func TestError_Newf(t *testing.T) {
	err := Newf(KindInvalidArgument, "bad category %q", "foo")
	assert.Equal(t, `[InvalidArgument] bad category "foo"`, err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(KindInternal, "write failed", cause)
	require.NotNil(t, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestWrap_NilCause(t *testing.T) {
	assert.Nil(t, Wrap(KindInternal, "whatever", nil))
	assert.Nil(t, Wrapf(KindInternal, nil, "whatever %d", 1))
}

func TestError_IsMatchesByKind(t *testing.T) {
	err := New(KindAlreadyExists, "projects/p1.md")
	assert.True(t, stderrors.Is(err, New(KindAlreadyExists, "other message")))
	assert.False(t, stderrors.Is(err, New(KindNotFound, "other message")))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"structured", New(KindConflict, "x"), KindConflict},
		{"wrapped in fmt", fmt.Errorf("outer: %w", New(KindProviderInvalid, "x")), KindProviderInvalid},
		{"context canceled", context.Canceled, KindCancelled},
		{"deadline exceeded", context.DeadlineExceeded, KindCancelled},
		{"plain", stderrors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindProviderUnavailable, "503")))
	assert.True(t, IsRetryable(New(KindStorageUnavailable, "connection refused")))
	assert.False(t, IsRetryable(New(KindProviderInvalid, "bad key")))
	assert.False(t, IsRetryable(New(KindNotFound, "missing")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWithDetail(t *testing.T) {
	err := New(KindNotFound, "file missing").
		WithDetail("file_path", "projects/p1.md").
		WithDetail("op", "read")

	assert.Equal(t, "projects/p1.md", err.Details["file_path"])
	assert.Equal(t, "read", err.Details["op"])
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "file missing", MessageOf(New(KindNotFound, "file missing")))
	assert.Equal(t, "plain", MessageOf(stderrors.New("plain")))
	assert.Equal(t, "", MessageOf(nil))
}
