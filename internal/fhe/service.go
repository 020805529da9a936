package fhe

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidProof     = errors.New("input proof rejected")
	ErrUnknownHandle    = errors.New("unknown handle")
	ErrNoCapability     = errors.New("principal has no decrypt capability")
	ErrBadAuthorization = errors.New("invalid decrypt authorization")
)

// Service is the encrypted-value capability consumed by the ledger. All score
// material crosses this boundary as opaque handles; the ledger never sees a
// plaintext. Decryption is an off-ledger step and intentionally not part of
// this interface (see Coprocessor.Decrypt).
type Service interface {
	// FromExternalInput verifies that proof binds raw to owner and registers
	// the ciphertext, returning an internal handle.
	FromExternalInput(raw []byte, proof []byte, owner common.Address) (Handle, error)

	// EncryptPlaintext trivially encrypts a value the caller already knows,
	// e.g. a lender's threshold, so it can enter homomorphic operations.
	EncryptPlaintext(value uint64) (Handle, error)

	// GreaterOrEqual computes a >= b over ciphertexts. The result is a fresh
	// handle to an encrypted boolean (1 or 0) with no capabilities granted.
	GreaterOrEqual(a, b Handle) (Handle, error)

	// GrantDecrypt permits principal to decrypt h off-ledger.
	GrantDecrypt(h Handle, principal common.Address) error

	// GrantDecryptSelf records the ledger's own bookkeeping capability on h.
	GrantDecryptSelf(h Handle) error
}
