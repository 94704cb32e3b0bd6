package vrfchain

import (
	"encoding/binary"

	"github.com/gtank/ristretto255"
	lru "github.com/hashicorp/golang-lru"
)

// A Verifier checks tokens while caching the points that links hash to. Tokens which share a prefix, such as the
// successive versions of a delegated token, only hash each shared link once. A Verifier is safe for concurrent use.
//
// Cache keys include the full message, so the cache holds up to size messages in memory.
type Verifier struct {
	points *lru.Cache
}

// NewVerifier returns a Verifier caching up to size link points.
func NewVerifier(size int) (*Verifier, error) {
	points, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Verifier{points: points}, nil
}

// Check is equivalent to [Token.Check].
func (v *Verifier) Check(t *Token) error {
	if t.sig == nil {
		return ErrMalformedToken
	}
	return t.sig.check(t.domain, t.keys, t.messages, v.hashToCurve)
}

// CheckDomain is equivalent to [Token.CheckDomain].
func (v *Verifier) CheckDomain(t *Token, domain string) error {
	if t.domain != domain {
		return ErrInvalidSignature
	}
	return v.Check(t)
}

// Verify returns true if and only if [Verifier.Check] returns nil.
func (v *Verifier) Verify(t *Token) bool {
	return v.Check(t) == nil
}

// Len returns the number of cached points.
func (v *Verifier) Len() int {
	return v.points.Len()
}

// hashToCurve returns the cached link point or computes and caches it. Cached points are shared and must not be
// modified.
func (v *Verifier) hashToCurve(domain string, q *ristretto255.Element, m []byte) *ristretto255.Element {
	key := make([]byte, 0, binary.MaxVarintLen64+len(domain)+PublicKeySize+len(m))
	key = binary.AppendUvarint(key, uint64(len(domain)))
	key = append(key, domain...)
	key = append(key, q.Bytes()...)
	key = append(key, m...)

	if h, ok := v.points.Get(string(key)); ok {
		return h.(*ristretto255.Element)
	}

	h := hashToCurve(domain, q, m)
	v.points.Add(string(key), h)
	return h
}
