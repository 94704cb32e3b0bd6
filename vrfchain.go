// Package vrfchain implements appendable, aggregated VRF signature chains using Ristretto255.
//
// A [Token] is an ordered chain of (message, public key) links. Each link is endorsed with a Schnorr-style VRF proof
// by the holder of the link's private key, and all proofs are folded into a single [Signature] consisting of a gamma
// accumulator, one challenge per link, a w accumulator, and an aggregate response scalar. Any holder of a token can
// extend it with a new link signed under their own key without access to the private keys of earlier signers.
// Verification is a single pass over every link followed by one scalar comparison against the last challenge.
//
// Tokens are persistent values: [Token.Append] returns a new token and leaves the receiver untouched, so branching a
// chain by appending twice to the same token is legal and produces two independent chains.
package vrfchain

import "errors"

var (
	// ErrMalformedToken is returned when the number of messages, keys, and challenges in a chain differ.
	ErrMalformedToken = errors.New("vrfchain: malformed token")

	// ErrInvalidSignature is returned when a well-formed chain fails verification.
	ErrInvalidSignature = errors.New("vrfchain: invalid signature")

	// ErrInvalidToken is returned by [Token.Append] when the token being extended does not verify.
	ErrInvalidToken = errors.New("vrfchain: invalid token")

	// ErrInvalidEncoding is returned when a key, signature, or token cannot be decoded.
	ErrInvalidEncoding = errors.New("vrfchain: invalid encoding")

	// ErrRandomnessUnavailable is returned when the randomness source fails during key generation.
	ErrRandomnessUnavailable = errors.New("vrfchain: randomness unavailable")
)
