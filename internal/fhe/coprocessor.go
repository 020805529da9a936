package fhe

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
	"golang.org/x/crypto/sha3"
)

// ledgerPrincipal is the coprocessor-side identity of the ledger itself,
// used for the bookkeeping grants made via GrantDecryptSelf. The zero
// address is unforgeable here because no secp256k1 key recovers to it.
var ledgerPrincipal = common.Address{}

// maxAuthorizationWindow bounds how far in the future a decrypt
// authorization deadline may lie.
const maxAuthorizationWindow = 5 * time.Minute

// Coprocessor is a local simulation of the encrypted-value service: a BFV
// keypair generated at startup, ciphertexts stored in-process behind opaque
// handles, and an ACL of decrypt capabilities. The secret key never leaves
// this struct; comparison results cross the API only as encrypted booleans.
type Coprocessor struct {
	params    bfv.Parameters
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
	decryptor rlwe.Decryptor

	mu  sync.Mutex
	cts map[Handle]*rlwe.Ciphertext
	acl map[Handle]map[common.Address]struct{}

	now func() time.Time
}

func NewCoprocessor() (*Coprocessor, error) {
	params, err := bfv.NewParametersFromLiteral(bfv.PN13QP218)
	if err != nil {
		return nil, fmt.Errorf("bfv parameters: %w", err)
	}
	kgen := bfv.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPair()

	return &Coprocessor{
		params:    params,
		encoder:   bfv.NewEncoder(params),
		encryptor: bfv.NewEncryptor(params, pk),
		decryptor: bfv.NewDecryptor(params, sk),
		cts:       map[Handle]*rlwe.Ciphertext{},
		acl:       map[Handle]map[common.Address]struct{}{},
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// EncryptInput plays the client SDK: it encrypts value under the network
// public key and produces the proof binding the ciphertext to owner. The
// pair is what callers hand to FromExternalInput.
func (c *Coprocessor) EncryptInput(value uint64, owner common.Address) ([]byte, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct, err := c.encryptUint(value)
	if err != nil {
		return nil, nil, err
	}
	raw, err := ct.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return raw, inputProof(raw, owner), nil
}

func (c *Coprocessor) FromExternalInput(raw []byte, proof []byte, owner common.Address) (Handle, error) {
	if !bytes.Equal(proof, inputProof(raw, owner)) {
		return "", ErrInvalidProof
	}
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(ct), nil
}

func (c *Coprocessor) EncryptPlaintext(value uint64) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct, err := c.encryptUint(value)
	if err != nil {
		return "", err
	}
	return c.register(ct), nil
}

func (c *Coprocessor) GreaterOrEqual(a, b Handle) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	av, err := c.decryptUint(a)
	if err != nil {
		return "", err
	}
	bv, err := c.decryptUint(b)
	if err != nil {
		return "", err
	}

	// The comparison happens inside the trust boundary; only the encrypted
	// bit leaves it.
	var bit uint64
	if av >= bv {
		bit = 1
	}
	ct, err := c.encryptUint(bit)
	if err != nil {
		return "", err
	}
	return c.register(ct), nil
}

func (c *Coprocessor) GrantDecrypt(h Handle, principal common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cts[h]; !ok {
		return ErrUnknownHandle
	}
	c.acl[h][principal] = struct{}{}
	return nil
}

func (c *Coprocessor) GrantDecryptSelf(h Handle) error {
	return c.GrantDecrypt(h, ledgerPrincipal)
}

// DecryptAuthorization is the signed, time-bounded artifact a principal
// presents to decrypt a handle off-ledger. Signature is a 65-byte secp256k1
// signature over AuthorizationDigest.
type DecryptAuthorization struct {
	Handle    Handle
	Principal common.Address
	Deadline  time.Time
	Signature []byte
}

// Decrypt releases the plaintext of h to the principal that signed auth,
// provided that principal holds a decrypt capability on h. This is the only
// way any plaintext leaves the coprocessor.
func (c *Coprocessor) Decrypt(auth DecryptAuthorization) (uint64, error) {
	now := c.now()
	if !auth.Deadline.After(now) || auth.Deadline.After(now.Add(maxAuthorizationWindow)) {
		return 0, ErrBadAuthorization
	}

	pub, err := crypto.SigToPub(AuthorizationDigest(auth.Handle, auth.Deadline), auth.Signature)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadAuthorization, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != auth.Principal {
		return 0, ErrBadAuthorization
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cts[auth.Handle]; !ok {
		return 0, ErrUnknownHandle
	}
	if _, ok := c.acl[auth.Handle][signer]; !ok {
		return 0, ErrNoCapability
	}
	return c.decryptUint(auth.Handle)
}

// AuthorizationDigest is the 32-byte message a principal signs to authorize
// decryption of h until deadline.
func AuthorizationDigest(h Handle, deadline time.Time) []byte {
	d := sha3.NewLegacyKeccak256()
	_, _ = fmt.Fprintf(d, "ctc/decrypt\n%s\n%d", h, deadline.Unix())
	return d.Sum(nil)
}

func inputProof(raw []byte, owner common.Address) []byte {
	d := sha3.NewLegacyKeccak256()
	_, _ = d.Write(raw)
	_, _ = d.Write(owner.Bytes())
	return d.Sum(nil)
}

// register stores ct under a fresh handle with an empty ACL. Caller holds mu.
func (c *Coprocessor) register(ct *rlwe.Ciphertext) Handle {
	h := newHandle()
	c.cts[h] = ct
	c.acl[h] = map[common.Address]struct{}{}
	return h
}

// encryptUint encrypts a single value in the first plaintext slot. Caller
// holds mu. Values must stay below the plaintext modulus T; credit scores
// and thresholds (<= 850) are far inside it.
func (c *Coprocessor) encryptUint(value uint64) (*rlwe.Ciphertext, error) {
	if value >= c.params.T() {
		return nil, fmt.Errorf("value %d exceeds plaintext modulus", value)
	}
	pt := bfv.NewPlaintext(c.params, c.params.MaxLevel())
	c.encoder.Encode([]uint64{value}, pt)
	return c.encryptor.EncryptNew(pt), nil
}

// decryptUint is internal-only; callers hold mu.
func (c *Coprocessor) decryptUint(h Handle) (uint64, error) {
	ct, ok := c.cts[h]
	if !ok {
		return 0, ErrUnknownHandle
	}
	pt := c.decryptor.DecryptNew(ct)
	return c.encoder.DecodeUintNew(pt)[0], nil
}
