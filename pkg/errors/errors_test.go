package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := NotFound("alert %s not found", "42")
	wrapped := Wrap(base, "complete alert")

	assert.Equal(t, CodeNotFound, GetCode(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, "complete alert: alert 42 not found", wrapped.Error())
}

func TestGetCodeThroughStdWrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", Validation("missing field %q", "blood_group"))
	assert.Equal(t, CodeValidation, GetCode(err))
	assert.True(t, IsValidation(err))
	assert.False(t, IsConflict(err))
}

func TestStoreIOUnwrap(t *testing.T) {
	err := StoreIO(io.ErrUnexpectedEOF, "read %s", "alerts")
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, io.ErrUnexpectedEOF, Cause(err))
	assert.Equal(t, CodeStoreIO, GetCode(err))
	assert.Nil(t, StoreIO(nil, "noop"))
}

func TestUncodedError(t *testing.T) {
	assert.Equal(t, 0, GetCode(stderrors.New("plain")))
	assert.Equal(t, 0, GetCode(nil))
}
