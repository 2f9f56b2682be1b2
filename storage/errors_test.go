package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Op: OpPut, Key: "a.txt", Err: fmt.Errorf("boom")}
	assert.Equal(t, `storage: put "a.txt": boom`, err.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := &Error{Op: OpGet, Key: "k", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(&Error{Op: OpGet, Key: "k", Err: ErrNotFound}))
	assert.False(t, IsNotFound(errors.New("something else")))
	assert.False(t, IsNotFound(nil))
}

func TestIsNotFoundRemote(t *testing.T) {
	notFound := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}

	assert.True(t, isNotFound(notFound))
	assert.True(t, isNotFound(fmt.Errorf("stat failed: %w", notFound)))
	assert.False(t, isNotFound(denied))
	assert.False(t, isNotFound(errors.New("connection refused")))
}

func TestClassifyRemoteError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"access denied", errors.New("AccessDenied: not allowed"), "access_denied"},
		{"missing", errors.New("NoSuchKey: gone"), "not_found"},
		{"throttled", errors.New("SlowDown: back off"), "throttled"},
		{"network", errors.New("dial tcp: connection refused"), "network_error"},
		{"other", errors.New("weird"), "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyRemoteError(tc.err))
		})
	}
}
