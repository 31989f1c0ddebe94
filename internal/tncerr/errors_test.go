package tncerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsAgainstBareKind(t *testing.T) {
	err := New(TransmitBlocked, 2, "PTT line stuck", nil)
	assert.True(t, errors.Is(err, TransmitBlocked))
	assert.False(t, errors.Is(err, Disconnected))
}

func TestErrorsAsRecoversFields(t *testing.T) {
	cause := errors.New("ioctl failed")
	wrapped := fmt.Errorf("keying channel: %w", New(TransmitBlocked, 1, "serial RTS", cause))

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.Equal(t, TransmitBlocked, e.Kind)
	assert.Equal(t, 1, e.Channel)
	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorStringIncludesDetail(t *testing.T) {
	err := New(DeviceLost, 0, "read returned EOF", nil)
	assert.Contains(t, err.Error(), "device_lost")
	assert.Contains(t, err.Error(), "read returned EOF")
}
