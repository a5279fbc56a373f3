package errs

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeError_IsByCode(t *testing.T) {
	err := ErrSocketNotFound.WrapMsg("lookup", "sid", "42")

	assert.True(t, errors.Is(err, &ErrSocketNotFound))
	assert.False(t, errors.Is(err, &ErrServiceUnavailable))
	assert.True(t, HasCode(err, TargetNotFound))

	c, ok := AsCode(err)
	assert.True(t, ok)
	assert.Equal(t, "lookup, sid=42", c.Detail)
}

func TestCodeError_WrapDoesNotMutateSentinel(t *testing.T) {
	_ = ErrArgs.WrapMsg("first")
	assert.Empty(t, ErrArgs.Detail)
}

func TestClientMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"code error hides detail", ErrServiceUnavailable.WrapMsg("no provider", "action", "chat.send"), "Service unavailable"},
		{"grpc status", status.Error(codes.Internal, "converse not found"), "converse not found"},
		{"wrapped plain error keeps root cause", pkgerrors.Wrap(errors.New("boom"), "call chat.send"), "boom"},
		{"fmt wrapped", fmt.Errorf("outer: %w", errors.New("inner")), "outer: inner"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientMessage(tt.err))
		})
	}
}

func TestErrPanic(t *testing.T) {
	assert.Nil(t, ErrPanic(nil))

	err := ErrPanic("kaboom")
	c, ok := AsCode(err)
	assert.True(t, ok)
	assert.Equal(t, ServerInternalError, c.Code)
	assert.Equal(t, "kaboom", c.Detail)
}
