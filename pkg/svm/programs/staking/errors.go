package staking

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is the stable numeric identifier of a staking failure. It is what a
// transaction result carries across the wire.
type Code uint32

const (
	CodeInvalidInstruction Code = iota
	CodeAddressMismatch
	CodeAlreadyInitialized
	CodeInsufficientPrincipal
	CodeInsufficientFunds
	CodeInsufficientRewardReserve
	CodeNothingToClaim
	CodeArithmeticOverflow
	CodeRentNotExempt
	CodeInvalidAmount
	CodeOwnerMismatch
	CodeMintMismatch
	CodeInvalidVault
	CodeInvalidAccountData
	CodeMissingSignature
	CodeNotInitialized
)

var codeNames = map[Code]string{
	CodeInvalidInstruction:        "InvalidInstruction",
	CodeAddressMismatch:           "AddressMismatch",
	CodeAlreadyInitialized:        "AlreadyInitialized",
	CodeInsufficientPrincipal:     "InsufficientPrincipal",
	CodeInsufficientFunds:         "InsufficientFunds",
	CodeInsufficientRewardReserve: "InsufficientRewardReserve",
	CodeNothingToClaim:            "NothingToClaim",
	CodeArithmeticOverflow:        "ArithmeticOverflow",
	CodeRentNotExempt:             "RentNotExempt",
	CodeInvalidAmount:             "InvalidAmount",
	CodeOwnerMismatch:             "OwnerMismatch",
	CodeMintMismatch:              "MintMismatch",
	CodeInvalidVault:              "InvalidVault",
	CodeInvalidAccountData:        "InvalidAccountData",
	CodeMissingSignature:          "MissingSignature",
	CodeNotInitialized:            "NotInitialized",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Resubmittable reports whether the same request can succeed later, with
// different parameters or once more funds or time are available. The other
// codes describe malformed requests that will never succeed as submitted.
func (c Code) Resubmittable() bool {
	switch c {
	case CodeInsufficientPrincipal,
		CodeInsufficientFunds,
		CodeInsufficientRewardReserve,
		CodeNothingToClaim,
		CodeArithmeticOverflow,
		CodeRentNotExempt,
		CodeInvalidAmount:
		return true
	default:
		return false
	}
}

// Error is a staking program failure.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("staking: %s (%d)", e.Code, uint32(e.Code))
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidInstruction        = &Error{CodeInvalidInstruction}
	ErrAddressMismatch           = &Error{CodeAddressMismatch}
	ErrAlreadyInitialized        = &Error{CodeAlreadyInitialized}
	ErrInsufficientPrincipal     = &Error{CodeInsufficientPrincipal}
	ErrInsufficientFunds         = &Error{CodeInsufficientFunds}
	ErrInsufficientRewardReserve = &Error{CodeInsufficientRewardReserve}
	ErrNothingToClaim            = &Error{CodeNothingToClaim}
	ErrArithmeticOverflow        = &Error{CodeArithmeticOverflow}
	ErrRentNotExempt             = &Error{CodeRentNotExempt}
	ErrInvalidAmount             = &Error{CodeInvalidAmount}
	ErrOwnerMismatch             = &Error{CodeOwnerMismatch}
	ErrMintMismatch              = &Error{CodeMintMismatch}
	ErrInvalidVault              = &Error{CodeInvalidVault}
	ErrInvalidAccountData        = &Error{CodeInvalidAccountData}
	ErrMissingSignature          = &Error{CodeMissingSignature}
	ErrNotInitialized            = &Error{CodeNotInitialized}
)

// CodeOf extracts the staking code from anywhere in err's chain.
func CodeOf(err error) (Code, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
