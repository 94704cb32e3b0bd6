package vrfchain

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
)

// PrivateKeySize and PublicKeySize are the sizes, in bytes, of encoded private and public keys.
const (
	PrivateKeySize = 32
	PublicKeySize  = 32
)

// A KeyPair holds a Ristretto255 private scalar and its public element. The private scalar never leaves the KeyPair
// except through [KeyPair.PrivateKeyBytes].
type KeyPair struct {
	d *ristretto255.Scalar
	q *ristretto255.Element
}

// GenerateKey returns a new key pair using 64 bytes of uniform data from rand. If rand is nil, [crypto/rand.Reader] is
// used. If rand fails, the returned error wraps [ErrRandomnessUnavailable].
func GenerateKey(rand io.Reader) (*KeyPair, error) {
	if rand == nil {
		rand = defaultRand
	}

	var b [64]byte
	defer clear(b[:])
	if _, err := io.ReadFull(rand, b[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRandomnessUnavailable, err)
	}

	d, _ := ristretto255.NewScalar().SetUniformBytes(b[:])
	return NewKeyPair(d), nil
}

// NewKeyPair returns the key pair for the given private scalar. The scalar is copied.
func NewKeyPair(d *ristretto255.Scalar) *KeyPair {
	d = cloneScalar(d)
	return &KeyPair{d: d, q: ristretto255.NewIdentityElement().ScalarBaseMult(d)}
}

// ParsePrivateKey returns the key pair for a canonically-encoded, non-zero private scalar.
func ParsePrivateKey(b []byte) (*KeyPair, error) {
	d, err := ristretto255.NewScalar().SetCanonicalBytes(b)
	if err != nil || d.Equal(ristretto255.NewScalar()) == 1 {
		return nil, ErrInvalidEncoding
	}
	return NewKeyPair(d), nil
}

// ParsePublicKey decodes a canonically-encoded public key.
func ParsePublicKey(b []byte) (*ristretto255.Element, error) {
	q, err := ristretto255.NewIdentityElement().SetCanonicalBytes(b)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	return q, nil
}

// PublicKey returns a copy of the key pair's public element.
func (kp *KeyPair) PublicKey() *ristretto255.Element {
	return clonePoint(kp.q)
}

// PrivateKeyBytes returns the canonical encoding of the private scalar. It exists for key storage only.
func (kp *KeyPair) PrivateKeyBytes() []byte {
	return kp.d.Bytes()
}

func (kp *KeyPair) String() string {
	return fmt.Sprintf("KeyPair(%x)", kp.q.Bytes())
}

var defaultRand io.Reader = rand.Reader
