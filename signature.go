package vrfchain

import (
	"slices"

	"github.com/gtank/ristretto255"
)

// A Signature is the aggregate proof over every link of a chain.
//
// Each link i contributes a VRF output Γ_i = [x_i]H_i and a Schnorr-style proof (c_i, s_i) with s_i = k_i + c_i*x_i.
// The aggregate keeps Γ = Σ[-c_i]Γ_i, every challenge c_i, the aggregate response S = Σs_i, and a correction point W
// which cancels the cross terms between earlier and later responses so that only S is needed to reconstruct the
// commitments of the last link.
//
// Signatures are immutable; [Signature.Append] returns a new value.
type Signature struct {
	gammaAgg   *ristretto255.Element
	challenges []*ristretto255.Scalar
	w          *ristretto255.Element
	s          *ristretto255.Scalar
}

// NewSignature creates the signature of a single-link chain in which the key pair endorses message.
func NewSignature(domain string, kp *KeyPair, message []byte) *Signature {
	h, prover := hashLink(domain, kp.q, message)
	gamma := ristretto255.NewIdentityElement().ScalarMult(kp.d, h)
	k := deriveNonce(prover, kp.d, nil)

	// Calculate the commitment points u = [k]G and v = [k]H.
	u := ristretto255.NewIdentityElement().ScalarBaseMult(k)
	v := ristretto255.NewIdentityElement().ScalarMult(k, h)

	// Calculate the challenge and the response s = k + c*x.
	c := hashToScalar(domain, h, kp.q, u, v)
	s := ristretto255.NewScalar().Multiply(c, kp.d)
	s.Add(s, k)

	return &Signature{
		gammaAgg:   ristretto255.NewIdentityElement().ScalarMult(ristretto255.NewScalar().Negate(c), gamma),
		challenges: []*ristretto255.Scalar{c},
		w:          ristretto255.NewIdentityElement(),
		s:          s,
	}
}

// Append returns the signature of the chain extended by one link in which the key pair endorses message. The keys and
// messages are those of the chain the receiver signs, in order.
//
// Append does not check that the receiver is a valid signature of keys and messages: a signature appended to an
// invalid chain can still verify. Callers extending chains they did not build must check them first, as
// [Token.Append] does.
//
// Returns [ErrMalformedToken] if the number of keys, messages, and challenges differ.
func (sig *Signature) Append(domain string, keys []*ristretto255.Element, messages [][]byte, kp *KeyPair, message []byte) (*Signature, error) {
	if !sig.aligned(keys, messages) {
		return nil, ErrMalformedToken
	}

	hashes := make([]*ristretto255.Element, len(keys))
	for i := range keys {
		hashes[i] = hashToCurve(domain, keys[i], messages[i])
	}
	hashesSum := sumPoints(hashes)
	p := sumPoints(keys)

	h, prover := hashLink(domain, kp.q, message)
	gamma := ristretto255.NewIdentityElement().ScalarMult(kp.d, h)
	k := deriveNonce(prover, kp.d, sig.nonceBinding(keys, hashes))

	// u = Σ[-c_i]P_i + [S]G + [k]G
	u := sig.commitmentU(keys)
	u.Add(u, ristretto255.NewIdentityElement().ScalarBaseMult(k))

	// v = W + Γ + [S]ΣH_i + [k]H
	v := sig.commitmentV(hashesSum)
	v.Add(v, ristretto255.NewIdentityElement().ScalarMult(k, h))

	// The new challenge binds the new link to the sum of every key in the chain, including its own.
	c := hashToScalar(domain, h, ristretto255.NewIdentityElement().Add(p, kp.q), u, v)
	s := ristretto255.NewScalar().Multiply(c, kp.d)
	s.Add(s, k)

	// W' = W + [-s]ΣH_i + [-S]H
	w := ristretto255.NewIdentityElement().ScalarMult(ristretto255.NewScalar().Negate(s), hashesSum)
	w.Add(w, ristretto255.NewIdentityElement().ScalarMult(ristretto255.NewScalar().Negate(sig.s), h))
	w.Add(w, sig.w)

	// Γ' = Γ + [-c]Γ_new
	gammaAgg := ristretto255.NewIdentityElement().ScalarMult(ristretto255.NewScalar().Negate(c), gamma)
	gammaAgg.Add(gammaAgg, sig.gammaAgg)

	return &Signature{
		gammaAgg:   gammaAgg,
		challenges: append(slices.Clip(sig.challenges), c),
		w:          w,
		s:          ristretto255.NewScalar().Add(sig.s, s),
	}, nil
}

// Check verifies the signature against the chain's keys and messages, in order. It returns nil if every link was
// endorsed by the holder of its key, [ErrMalformedToken] if the number of keys, messages, and challenges differ
// (including when they are all zero), or [ErrInvalidSignature] otherwise.
func (sig *Signature) Check(domain string, keys []*ristretto255.Element, messages [][]byte) error {
	return sig.check(domain, keys, messages, hashToCurve)
}

// Verify returns true if and only if [Signature.Check] returns nil.
func (sig *Signature) Verify(domain string, keys []*ristretto255.Element, messages [][]byte) bool {
	return sig.Check(domain, keys, messages) == nil
}

// Len returns the number of links the signature covers.
func (sig *Signature) Len() int {
	return len(sig.challenges)
}

// Equal returns true if both signatures have identical state.
func (sig *Signature) Equal(other *Signature) bool {
	if len(sig.challenges) != len(other.challenges) ||
		sig.gammaAgg.Equal(other.gammaAgg) != 1 ||
		sig.w.Equal(other.w) != 1 ||
		sig.s.Equal(other.s) != 1 {
		return false
	}

	for i, c := range sig.challenges {
		if c.Equal(other.challenges[i]) != 1 {
			return false
		}
	}
	return true
}

func (sig *Signature) clone() *Signature {
	out := &Signature{challenges: make([]*ristretto255.Scalar, len(sig.challenges))}
	for i, c := range sig.challenges {
		out.challenges[i] = cloneScalar(c)
	}
	if sig.gammaAgg != nil {
		out.gammaAgg = clonePoint(sig.gammaAgg)
	}
	if sig.w != nil {
		out.w = clonePoint(sig.w)
	}
	if sig.s != nil {
		out.s = cloneScalar(sig.s)
	}
	return out
}

func (sig *Signature) check(domain string, keys []*ristretto255.Element, messages [][]byte, hash hashFunc) error {
	if !sig.aligned(keys, messages) {
		return ErrMalformedToken
	}

	hashes := make([]*ristretto255.Element, len(keys))
	for i := range keys {
		hashes[i] = hash(domain, keys[i], messages[i])
	}

	u := sig.commitmentU(keys)
	v := sig.commitmentV(sumPoints(hashes))
	p := sumPoints(keys)

	// Recompute the last challenge. Every earlier link is bound into it through u, v, and p.
	last := len(keys) - 1
	c := hashToScalar(domain, hashes[last], p, u, v)
	if c.Equal(sig.challenges[last]) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// aligned returns true if the signature is populated and covers exactly the given keys and messages.
func (sig *Signature) aligned(keys []*ristretto255.Element, messages [][]byte) bool {
	n := len(sig.challenges)
	if n == 0 || len(keys) != n || len(messages) != n || sig.s == nil || sig.w == nil || sig.gammaAgg == nil {
		return false
	}
	return !slices.Contains(keys, nil)
}

// commitmentU returns Σ[-c_i]P_i + [S]G.
func (sig *Signature) commitmentU(keys []*ristretto255.Element) *ristretto255.Element {
	scalars := make([]*ristretto255.Scalar, 0, len(keys)+1)
	points := make([]*ristretto255.Element, 0, len(keys)+1)
	for i, q := range keys {
		scalars = append(scalars, ristretto255.NewScalar().Negate(sig.challenges[i]))
		points = append(points, q)
	}
	scalars = append(scalars, sig.s)
	points = append(points, ristretto255.NewGeneratorElement())
	return ristretto255.NewIdentityElement().VarTimeMultiScalarMult(scalars, points)
}

// commitmentV returns W + Γ + [S]ΣH_i.
func (sig *Signature) commitmentV(hashesSum *ristretto255.Element) *ristretto255.Element {
	v := ristretto255.NewIdentityElement().ScalarMult(sig.s, hashesSum)
	v.Add(v, sig.gammaAgg)
	return v.Add(v, sig.w)
}

// nonceBinding encodes the chain being extended: the current signature state followed by each link's key and point.
func (sig *Signature) nonceBinding(keys, hashes []*ristretto255.Element) []byte {
	b := sig.appendBinary(make([]byte, 0, sig.encodedLen()+64*len(keys)))
	for i := range keys {
		b = append(b, keys[i].Bytes()...)
		b = append(b, hashes[i].Bytes()...)
	}
	return b
}
