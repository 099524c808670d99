package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error with cause",
			err:  &Error{Type: ErrInvalidRequest, Message: "test message", Cause: errors.New("underlying error")},
			want: "invalid_request: test message: underlying error",
		},
		{
			name: "error without cause",
			err:  &Error{Type: ErrInternal, Message: "test message", Cause: nil},
			want: "internal_error: test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &Error{Type: ErrInternal, Message: "test message", Cause: cause}
	assert.Equal(t, cause, err.Unwrap())

	errNoCause := &Error{Type: ErrInternal, Message: "test message"}
	assert.Nil(t, errNoCause.Unwrap())
}

func TestNewErrorConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name        string
		constructor func(string, error) *Error
		wantType    string
	}{
		{"NewInvalidRequestError", NewInvalidRequestError, ErrInvalidRequest},
		{"NewUnauthorizedError", NewUnauthorizedError, ErrUnauthorized},
		{"NewNotFoundError", NewNotFoundError, ErrNotFound},
		{"NewInternalError", NewInternalError, ErrInternal},
		{"NewInsufficientScopeError", NewInsufficientScopeError, ErrInsufficientScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("test message", cause)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, "test message", err.Message)
			assert.Equal(t, cause, err.Cause)
		})
	}
}

func TestErrorTypeCheckersAndCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checker  func(error) bool
		wantBool bool
		wantCode int
	}{
		{"invalid request", NewInvalidRequestError("x", nil), IsInvalidRequest, true, 400},
		{"unauthorized", NewUnauthorizedError("x", nil), IsUnauthorized, true, 401},
		{"not found", NewNotFoundError("x", nil), IsNotFound, true, 404},
		{"internal", NewInternalError("x", nil), IsInternal, true, 500},
		{"insufficient scope", NewInsufficientScopeError("x", nil), IsInsufficientScope, true, 400},
		{"mismatched type", NewInvalidRequestError("x", nil), IsUnauthorized, false, 400},
		{"plain error", errors.New("plain"), IsInternal, false, 500},
		{"nil error", nil, IsInternal, false, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantBool, tt.checker(tt.err))
			assert.Equal(t, tt.wantCode, Code(tt.err))
		})
	}
}
