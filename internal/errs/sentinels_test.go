package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode_WrappedSentinels(t *testing.T) {
	t.Parallel()

	require.Equal(t, "OK", Code(nil))
	require.Equal(t, "InvalidState", Code(fmt.Errorf("accept: %w", ErrInvalidState)))
	require.Equal(t, "ModificationsTooLong", Code(fmt.Errorf("issue: %w", ErrModificationsTooLong)))
	require.Equal(t, "Internal", Code(errors.New("boom")))
}

func TestFromCode_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range codes {
		require.ErrorIs(t, FromCode(c.name), c.err)
		require.Equal(t, c.name, Code(c.err))
	}
	require.Nil(t, FromCode("Nope"))
}
