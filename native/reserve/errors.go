package reserve

import "errors"

var (
	// ErrPermissionDenied indicates the caller lacks the role required for the operation.
	ErrPermissionDenied = errors.New("reserve: permission denied")
	// ErrInvalidSubject indicates an empty or whitespace-only subject identifier.
	ErrInvalidSubject = errors.New("reserve: subject identifier required")
	// ErrBalanceOutOfRange indicates a claim outside the uint128 domain.
	ErrBalanceOutOfRange = errors.New("reserve: balance out of range")
	// ErrMismatchedArrays indicates a batch call with unequal subject and balance lengths.
	ErrMismatchedArrays = errors.New("reserve: mismatched array lengths")
	// ErrNoValidAttestations indicates a forced consensus with no usable claims.
	ErrNoValidAttestations = errors.New("reserve: no valid attestations")
	// ErrConfigOutOfBounds indicates a parameter setter received a value outside its domain.
	ErrConfigOutOfBounds = errors.New("reserve: parameter out of bounds")
)
