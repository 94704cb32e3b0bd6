// Package transcript implements a labelled, length-framed transcript protocol on cSHAKE128.
//
// Every operation appends a frame to the transcript. Finalizing operations (Derive, Seal, Open) evaluate cSHAKE128
// twice over the transcript: once to produce the requested output and once to produce a chain value, after which the
// transcript is reset to a CHAIN frame carrying that value. Outputs are therefore a function of every frame written
// since New.
package transcript

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/codahale/kt128"
	"github.com/codahale/treewrap/tw128"
	"golang.org/x/crypto/sha3"
)

// TagSize is the tag size appended by Seal.
const TagSize = tw128.TagSize

// ErrInvalidCiphertext is returned by [Protocol.Open] when tag verification fails. The protocol instance is permanently
// desynchronized and must be discarded.
var ErrInvalidCiphertext = errors.New("transcript: authentication failed")

// Protocol is a transcript-based cryptographic protocol instance.
type Protocol struct {
	h         sha3.ShakeHash
	initLabel string
}

// New creates a new protocol instance with the given label for domain separation. Two protocols using different labels
// produce cryptographically independent transcripts.
func New(label string) *Protocol {
	p := &Protocol{h: newHash(), initLabel: label}
	p.writeOpLabel(opInit, label)
	return p
}

func (p *Protocol) String() string {
	return fmt.Sprintf("Protocol(%s)", p.initLabel)
}

// Mix absorbs data into the protocol transcript. Use for keys, points, and any input that fits in memory.
func (p *Protocol) Mix(label string, data []byte) {
	p.writeOpLabel(opMix, label)
	p.writeLengthEncode(data)
}

// MixStream absorbs streaming data by pre-hashing through KT128. The Init label is used as the KT128 customization
// string, binding the digest to the protocol identity.
func (p *Protocol) MixStream(label string, r io.Reader) error {
	kh := kt128.New([]byte(p.initLabel))
	if _, err := io.Copy(kh, r); err != nil {
		return err
	}

	var digest [chainValueSize]byte
	_, _ = kh.Read(digest[:])

	p.writeOpLabel(opMixStream, label)
	p.writeLengthEncode(digest[:])
	return nil
}

// Fork clones the protocol state into two independent branches, each of which receives a distinct value. The base
// protocol is left unmodified. Callers must ensure left and right are distinct.
func (p *Protocol) Fork(label string, left, right []byte) (*Protocol, *Protocol) {
	l, r := p.Clone(), p.Clone()

	l.writeOpLabel(opFork, label)
	l.writeLeftEncode(1)
	l.writeLengthEncode(left)

	r.writeOpLabel(opFork, label)
	r.writeLeftEncode(2)
	r.writeLengthEncode(right)

	return l, r
}

// Derive appends outputLen bytes of pseudorandom output, a deterministic function of the full transcript, to dst and
// returns the resulting slice. The outputLen must be greater than zero.
func (p *Protocol) Derive(label string, dst []byte, outputLen int) []byte {
	if outputLen <= 0 {
		panic("transcript: Derive output_len must be greater than zero")
	}
	ret, out := sliceForAppend(dst, outputLen)

	p.writeOpLabel(opDerive, label)
	p.writeLeftEncode(uint64(outputLen))

	cv := p.finalize(dsDerive, out)
	p.resetChain(opDerive, cv[:], nil)

	return ret
}

// Seal encrypts plaintext with authentication and appends the ciphertext and a [TagSize]-byte tag to dst.
// Confidentiality requires that the transcript contains at least one unpredictable input (see [Protocol.Mix]).
func (p *Protocol) Seal(label string, dst, plaintext []byte) []byte {
	ret, out := sliceForAppend(dst, len(plaintext)+TagSize)
	ciphertext, tag := out[:len(plaintext)], out[len(plaintext):]

	p.writeOpLabel(opSeal, label)

	var key [tw128.KeySize]byte
	cv := p.finalize(dsSeal, key[:])

	// The key is unique to this transcript state, so the nonce is fixed at zero.
	e := tw128.NewEncryptor(key[:], nil, nil)
	clear(key[:])
	e.XORKeyStream(ciphertext, plaintext)
	fullTag := e.Finalize()

	p.resetChain(opSeal, cv[:], fullTag[:])

	copy(tag, fullTag[:])
	return ret
}

// Open decrypts and authenticates sealed data produced by Seal, appending the plaintext to dst.
//
// On failure, returns ErrInvalidCiphertext, and the protocol instance is permanently desynchronized and must be
// discarded.
func (p *Protocol) Open(label string, dst, sealed []byte) ([]byte, error) {
	if len(sealed) < TagSize {
		return nil, ErrInvalidCiphertext
	}

	ct := sealed[:len(sealed)-TagSize]
	tt := sealed[len(sealed)-TagSize:]

	p.writeOpLabel(opSeal, label)

	var key [tw128.KeySize]byte
	cv := p.finalize(dsSeal, key[:])

	ret, plaintext := sliceForAppend(dst, len(ct))
	d := tw128.NewDecryptor(key[:], nil, nil)
	clear(key[:])
	d.XORKeyStream(plaintext, ct)
	fullTag := d.Finalize()

	p.resetChain(opSeal, cv[:], fullTag[:])

	if subtle.ConstantTimeCompare(fullTag[:], tt) != 1 {
		clear(plaintext)
		return nil, ErrInvalidCiphertext
	}

	return ret, nil
}

// Clone returns an independent copy of the protocol state.
func (p *Protocol) Clone() *Protocol {
	return &Protocol{h: p.h.Clone(), initLabel: p.initLabel}
}

// finalize squeezes output into dst from a clone of the transcript finalized with outputDS, and returns a chain value
// squeezed from the transcript itself finalized with dsChain.
func (p *Protocol) finalize(outputDS byte, dst []byte) [chainValueSize]byte {
	var cv [chainValueSize]byte

	if dst != nil {
		oh := p.h.Clone()
		_, _ = oh.Write([]byte{outputDS})
		_, _ = oh.Read(dst)
	}

	_, _ = p.h.Write([]byte{dsChain})
	_, _ = p.h.Read(cv[:])

	return cv
}

// resetChain resets the transcript with a CHAIN frame holding the chain value and, when present, the tag.
func (p *Protocol) resetChain(originOp byte, chainValue, tag []byte) {
	p.h = newHash()

	_, _ = p.h.Write([]byte{opChain, originOp})
	if len(tag) == 0 {
		p.writeLeftEncode(1)
		p.writeLengthEncode(chainValue)
		return
	}

	p.writeLeftEncode(2)
	p.writeLengthEncode(chainValue)
	p.writeLengthEncode(tag)
}

// writeOpLabel writes op || length_encode(label). All protocol operations start with this preamble.
func (p *Protocol) writeOpLabel(op byte, label string) {
	_, _ = p.h.Write([]byte{op})
	p.writeLengthEncode([]byte(label))
}

// writeLeftEncode writes left_encode(x) as defined in NIST SP 800-185.
func (p *Protocol) writeLeftEncode(x uint64) {
	var buf [9]byte

	if x == 0 {
		buf[0] = 1
		_, _ = p.h.Write(buf[:2])
		return
	}

	i := 8
	for v := x; v > 0; v >>= 8 {
		buf[i] = byte(v)
		i--
	}
	buf[i] = byte(8 - i)
	_, _ = p.h.Write(buf[i:9])
}

// writeLengthEncode writes length_encode(x) = left_encode(len(x)) || x.
func (p *Protocol) writeLengthEncode(data []byte) {
	p.writeLeftEncode(uint64(len(data)))
	if len(data) > 0 {
		_, _ = p.h.Write(data)
	}
}

func newHash() sha3.ShakeHash {
	return sha3.NewCShake128(nil, []byte(customization))
}

// sliceForAppend takes a slice and a requested number of bytes. It returns a slice with the contents of the given
// slice followed by that many bytes and a second slice that aliases into it and contains only the extra bytes.
func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}

const (
	// customization is the cSHAKE128 customization string shared by every transcript.
	customization = "vrfchain transcript v1"

	// chainValueSize is the chain value and pre-hash digest size in bytes.
	chainValueSize = 64

	// Output domain separation bytes.
	dsChain  = 0x20
	dsDerive = 0x21
	dsSeal   = 0x23

	// Operation codes.
	opInit      = 0x10
	opMix       = 0x11
	opMixStream = 0x12
	opFork      = 0x13
	opDerive    = 0x14
	opSeal      = 0x17
	opChain     = 0x18
)
