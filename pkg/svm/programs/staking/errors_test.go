package staking

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := errors.Wrap(errors.Wrap(ErrNothingToClaim, "inner"), "outer")

	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, CodeNothingToClaim, code)
	require.Equal(t, Code(6), code)
	require.True(t, errors.Is(err, ErrNothingToClaim))
	require.False(t, errors.Is(err, ErrInvalidAmount))

	_, ok = CodeOf(errors.New("plain"))
	require.False(t, ok)
}

func TestCode_Resubmittable(t *testing.T) {
	require.True(t, CodeInsufficientRewardReserve.Resubmittable())
	require.True(t, CodeInsufficientFunds.Resubmittable())
	require.True(t, CodeNothingToClaim.Resubmittable())
	require.False(t, CodeAddressMismatch.Resubmittable())
	require.False(t, CodeAlreadyInitialized.Resubmittable())
	require.False(t, CodeMissingSignature.Resubmittable())
}

func TestCode_String(t *testing.T) {
	require.Equal(t, "InsufficientPrincipal", CodeInsufficientPrincipal.String())
	require.Equal(t, "NotInitialized", Code(15).String())
	require.Equal(t, "Code(99)", Code(99).String())
	require.Equal(t, "staking: AlreadyInitialized (2)", ErrAlreadyInitialized.Error())
}
