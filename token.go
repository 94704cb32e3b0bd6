package vrfchain

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/gtank/ristretto255"
)

// A Token is an ordered chain of messages, the public keys which endorsed them, and the aggregate [Signature] over all
// of them. Tokens are immutable: use [New] to create one and [Token.Append] to derive a longer one.
type Token struct {
	domain   string
	messages [][]byte
	keys     []*ristretto255.Element
	sig      *Signature
}

// New returns a single-link token in which the key pair endorses message. The domain string separates tokens of
// different applications: a token only verifies under the domain it was created with.
func New(domain string, kp *KeyPair, message []byte) *Token {
	message = bytes.Clone(message)
	return &Token{
		domain:   domain,
		messages: [][]byte{message},
		keys:     []*ristretto255.Element{kp.PublicKey()},
		sig:      NewSignature(domain, kp, message),
	}
}

// Append returns a new token extending t by one link in which the key pair endorses message. The receiver is not
// modified, and appending to the same token more than once yields independent branches.
//
// If t does not verify, Append returns an error wrapping [ErrInvalidToken] and the reason t failed.
func (t *Token) Append(kp *KeyPair, message []byte) (*Token, error) {
	if err := t.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	message = bytes.Clone(message)
	sig, err := t.sig.Append(t.domain, t.keys, t.messages, kp, message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	// Earlier messages and keys are never modified, so the new token shares them with t.
	return &Token{
		domain:   t.domain,
		messages: append(slices.Clip(t.messages), message),
		keys:     append(slices.Clip(t.keys), kp.PublicKey()),
		sig:      sig,
	}, nil
}

// Check returns nil if every link of the token was endorsed, in order, by the holder of its key. Otherwise, it returns
// [ErrMalformedToken] or [ErrInvalidSignature].
func (t *Token) Check() error {
	if t.sig == nil {
		return ErrMalformedToken
	}
	return t.sig.Check(t.domain, t.keys, t.messages)
}

// CheckDomain returns [ErrInvalidSignature] if the token was not created under domain, and [Token.Check] otherwise.
// Check alone proves only that the token is valid under the domain it names.
func (t *Token) CheckDomain(domain string) error {
	if t.domain != domain {
		return ErrInvalidSignature
	}
	return t.Check()
}

// Verify returns true if and only if [Token.Check] returns nil.
func (t *Token) Verify() bool {
	return t.Check() == nil
}

// Domain returns the domain string the token was created with.
func (t *Token) Domain() string {
	return t.domain
}

// Len returns the number of links in the token.
func (t *Token) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the token's messages, in order.
func (t *Token) Messages() [][]byte {
	messages := make([][]byte, len(t.messages))
	for i, m := range t.messages {
		messages[i] = bytes.Clone(m)
	}
	return messages
}

// Keys returns a copy of the token's public keys, in order.
func (t *Token) Keys() []*ristretto255.Element {
	keys := make([]*ristretto255.Element, len(t.keys))
	for i, q := range t.keys {
		keys[i] = clonePoint(q)
	}
	return keys
}

// Signature returns a copy of the token's aggregate signature.
func (t *Token) Signature() *Signature {
	if t.sig == nil {
		return nil
	}
	return t.sig.clone()
}

func (t *Token) String() string {
	return fmt.Sprintf("Token(%s, %d links)", t.domain, len(t.messages))
}
