package vrfchain

import (
	"bytes"

	"github.com/codahale/vrfchain/transcript"
	"github.com/gtank/ristretto255"
)

// hashFunc maps a link's public key and message to a point.
type hashFunc func(domain string, q *ristretto255.Element, m []byte) *ristretto255.Element

// hashLink hashes the link's public key and message to a point on the curve. It also returns the prover branch of the
// link transcript, which is bound to the same key and message and from which the signer derives its nonce.
func hashLink(domain string, q *ristretto255.Element, m []byte) (*ristretto255.Element, *transcript.Protocol) {
	p := transcript.New(domain)
	p.Mix("process", []byte("link"))
	p.Mix("generator", ristretto255.NewGeneratorElement().Bytes())
	p.Mix("key", q.Bytes())
	// A bytes.Reader never fails.
	_ = p.MixStream("message", bytes.NewReader(m))

	prover, verifier := p.Fork("role", []byte("prover"), []byte("verifier"))
	h, _ := ristretto255.NewIdentityElement().SetUniformBytes(verifier.Derive("point", nil, 64))
	return h, prover
}

// hashToCurve returns the link point for the given public key and message.
func hashToCurve(domain string, q *ristretto255.Element, m []byte) *ristretto255.Element {
	h, _ := hashLink(domain, q, m)
	return h
}

// hashToScalar derives a Fiat-Shamir challenge from the given points. The order of the points is significant.
func hashToScalar(domain string, points ...*ristretto255.Element) *ristretto255.Scalar {
	p := transcript.New(domain)
	p.Mix("process", []byte("challenge"))
	for _, e := range points {
		p.Mix("point", e.Bytes())
	}
	c, _ := ristretto255.NewScalar().SetUniformBytes(p.Derive("challenge", nil, 64))
	return c
}

// deriveNonce derives the signer's commitment scalar from the prover branch of its link transcript, its private scalar,
// and a binding value describing the chain being extended. The nonce is deterministic, and is unique for every
// combination of key, message, and prior chain. Signing the same message under the same key onto two different chains
// must never reuse a nonce, as the per-link response can be recovered from consecutive aggregate scalars.
func deriveNonce(prover *transcript.Protocol, d *ristretto255.Scalar, binding []byte) *ristretto255.Scalar {
	prover.Mix("private", d.Bytes())
	prover.Mix("binding", binding)
	k, _ := ristretto255.NewScalar().SetUniformBytes(prover.Derive("nonce", nil, 64))
	return k
}

// sumPoints returns the sum of the given points, or the identity if there are none.
func sumPoints(points []*ristretto255.Element) *ristretto255.Element {
	sum := ristretto255.NewIdentityElement()
	for _, e := range points {
		sum.Add(sum, e)
	}
	return sum
}

func clonePoint(e *ristretto255.Element) *ristretto255.Element {
	return ristretto255.NewIdentityElement().Add(e, ristretto255.NewIdentityElement())
}

func cloneScalar(s *ristretto255.Scalar) *ristretto255.Scalar {
	return ristretto255.NewScalar().Add(s, ristretto255.NewScalar())
}
