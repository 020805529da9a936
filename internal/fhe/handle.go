package fhe

import "github.com/google/uuid"

// Handle is an opaque reference to a ciphertext held by the coprocessor.
// Holders of a handle cannot recover the plaintext without a decrypt
// capability; the handle itself is safe to expose anywhere.
type Handle string

func newHandle() Handle {
	return Handle(uuid.NewString())
}

func (h Handle) IsZero() bool {
	return h == ""
}

func (h Handle) String() string {
	return string(h)
}
