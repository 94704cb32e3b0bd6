package vrfchain

import (
	"encoding/binary"

	"github.com/gtank/ristretto255"
	"github.com/mr-tron/base58"
)

// tokenVersion is the first byte of every encoded token.
const tokenVersion = 0x01

// MarshalBinary encodes the signature as the challenge count, the challenges, Γ, W, and S.
func (sig *Signature) MarshalBinary() ([]byte, error) {
	if len(sig.challenges) == 0 || sig.s == nil {
		return nil, ErrMalformedToken
	}
	return sig.appendBinary(make([]byte, 0, sig.encodedLen())), nil
}

// UnmarshalBinary decodes a signature produced by [Signature.MarshalBinary]. Returns [ErrInvalidEncoding] if data is
// not a complete, canonical encoding of a signature with at least one challenge.
func (sig *Signature) UnmarshalBinary(data []byte) error {
	d := decoder{b: data}
	out := d.signature()
	if err := d.finish(); err != nil {
		return err
	}
	*sig = *out
	return nil
}

func (sig *Signature) encodedLen() int {
	return binary.MaxVarintLen64 + 32*len(sig.challenges) + 3*32
}

func (sig *Signature) appendBinary(b []byte) []byte {
	b = binary.AppendUvarint(b, uint64(len(sig.challenges)))
	for _, c := range sig.challenges {
		b = append(b, c.Bytes()...)
	}
	b = append(b, sig.gammaAgg.Bytes()...)
	b = append(b, sig.w.Bytes()...)
	return append(b, sig.s.Bytes()...)
}

// MarshalBinary encodes the token as a version byte, the domain, the links in order, and the signature.
func (t *Token) MarshalBinary() ([]byte, error) {
	if t.sig == nil {
		return nil, ErrMalformedToken
	}

	size := 1 + binary.MaxVarintLen64*2 + len(t.domain) + t.sig.encodedLen()
	for _, m := range t.messages {
		size += PublicKeySize + binary.MaxVarintLen64 + len(m)
	}

	b := make([]byte, 0, size)
	b = append(b, tokenVersion)
	b = binary.AppendUvarint(b, uint64(len(t.domain)))
	b = append(b, t.domain...)
	b = binary.AppendUvarint(b, uint64(len(t.messages)))
	for i, m := range t.messages {
		b = append(b, t.keys[i].Bytes()...)
		b = binary.AppendUvarint(b, uint64(len(m)))
		b = append(b, m...)
	}
	return t.sig.appendBinary(b), nil
}

// UnmarshalBinary decodes a token produced by [Token.MarshalBinary]. The decoded token is not verified. Returns
// [ErrInvalidEncoding] if data is truncated, has trailing bytes, contains non-canonical points or scalars, or has a
// signature whose challenge count differs from its number of links.
func (t *Token) UnmarshalBinary(data []byte) error {
	d := decoder{b: data}
	if v := d.take(1); v != nil && v[0] != tokenVersion {
		return ErrInvalidEncoding
	}

	domain := string(d.bytes())
	n := d.count(PublicKeySize + 1)
	if n == 0 {
		return ErrInvalidEncoding
	}

	keys := make([]*ristretto255.Element, n)
	messages := make([][]byte, n)
	for i := range n {
		keys[i] = d.element()
		messages[i] = d.bytes()
	}

	sig := d.signature()
	if err := d.finish(); err != nil {
		return err
	}

	if sig.Len() != n {
		return ErrInvalidEncoding
	}

	*t = Token{domain: domain, messages: messages, keys: keys, sig: sig}
	return nil
}

// MarshalText encodes the token as base58 text.
func (t *Token) MarshalText() ([]byte, error) {
	b, err := t.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return []byte(base58.Encode(b)), nil
}

// UnmarshalText decodes base58 text produced by [Token.MarshalText].
func (t *Token) UnmarshalText(text []byte) error {
	b, err := base58.Decode(string(text))
	if err != nil {
		return ErrInvalidEncoding
	}
	return t.UnmarshalBinary(b)
}

// decoder reads length-prefixed values from a byte slice. After the first failure every read returns zero values and
// finish reports ErrInvalidEncoding.
type decoder struct {
	b      []byte
	failed bool
}

func (d *decoder) take(n int) []byte {
	if d.failed || n < 0 || n > len(d.b) {
		d.failed = true
		return nil
	}
	out := d.b[:n:n]
	d.b = d.b[n:]
	return out
}

func (d *decoder) uvarint() uint64 {
	if d.failed {
		return 0
	}
	// Only minimal encodings are accepted, so every token has exactly one encoding.
	v, n := binary.Uvarint(d.b)
	if n <= 0 || n != uvarintLen(v) {
		d.failed = true
		return 0
	}
	d.b = d.b[n:]
	return v
}

// count reads a uvarint element count, failing if the remaining input cannot hold that many elements of at least
// minSize bytes each.
func (d *decoder) count(minSize int) int {
	n := d.uvarint()
	if n > uint64(len(d.b)/minSize) {
		d.failed = true
		return 0
	}
	return int(n)
}

// bytes reads a uvarint-length-prefixed byte string and returns a copy of it.
func (d *decoder) bytes() []byte {
	n := d.uvarint()
	if n > uint64(len(d.b)) {
		d.failed = true
		return nil
	}
	return append([]byte{}, d.take(int(n))...)
}

func (d *decoder) element() *ristretto255.Element {
	b := d.take(32)
	if b == nil {
		return nil
	}
	e, err := ristretto255.NewIdentityElement().SetCanonicalBytes(b)
	if err != nil {
		d.failed = true
		return nil
	}
	return e
}

func (d *decoder) scalar() *ristretto255.Scalar {
	b := d.take(32)
	if b == nil {
		return nil
	}
	s, err := ristretto255.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		d.failed = true
		return nil
	}
	return s
}

func (d *decoder) signature() *Signature {
	n := d.count(32)
	if n == 0 {
		d.failed = true
		return nil
	}

	challenges := make([]*ristretto255.Scalar, n)
	for i := range n {
		challenges[i] = d.scalar()
	}

	return &Signature{
		challenges: challenges,
		gammaAgg:   d.element(),
		w:          d.element(),
		s:          d.scalar(),
	}
}

func (d *decoder) finish() error {
	if d.failed || len(d.b) != 0 {
		return ErrInvalidEncoding
	}
	return nil
}

func uvarintLen(v uint64) int {
	n := 1
	for ; v >= 0x80; v >>= 7 {
		n++
	}
	return n
}
