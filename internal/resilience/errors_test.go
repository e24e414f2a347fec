package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransientError_WrapsCause(t *testing.T) {
	cause := errors.New("embeddings request failed")
	te := NewTransientError(cause, 429)
	assert.Equal(t, cause.Error(), te.Error())
	assert.ErrorIs(t, te, cause)
	assert.Equal(t, 429, te.StatusCode)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "explicit transient", err: NewTransientError(errors.New("503"), 503), want: true},
		{name: "transient deep in chain", err: fmt.Errorf("loader: %w", NewTransientError(errors.New("503"), 503)), want: true},
		{name: "connection reset", err: syscall.ECONNRESET, want: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: true},
		{name: "wrapped reset message", err: errors.New("write tcp: connection reset by peer"), want: true},
		{name: "dns failure message", err: errors.New("dial tcp: lookup db.example.com: no such host"), want: true},
		{name: "io timeout message", err: errors.New("read tcp: i/o timeout"), want: true},
		{name: "constraint violation", err: errors.New("duplicate key value violates unique constraint"), want: false},
		{name: "plain error", err: errors.New("bad row"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	require.False(t, IsTransientHTTPStatus(0))
}
