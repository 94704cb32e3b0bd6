package vrfchain_test

import (
	"errors"
	"testing"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/internal/testdata"
	"github.com/gtank/ristretto255"
)

func TestSignature(t *testing.T) {
	drbg := testdata.New("vrfchain signature")
	kp1, kp2 := vrfchain.NewKeyPair(drbg.Scalar()), vrfchain.NewKeyPair(drbg.Scalar())

	sig1 := vrfchain.NewSignature("sig", kp1, []byte("hello"))
	keys := []*ristretto255.Element{kp1.PublicKey()}
	messages := [][]byte{[]byte("hello")}

	t.Run("valid", func(t *testing.T) {
		if !sig1.Verify("sig", keys, messages) {
			t.Error("Verify() = false, want = true")
		}

		if got, want := sig1.Len(), 1; got != want {
			t.Errorf("Len() = %d, want %d", got, want)
		}
	})

	t.Run("append", func(t *testing.T) {
		sig2, err := sig1.Append("sig", keys, messages, kp2, []byte("world"))
		if err != nil {
			t.Fatal(err)
		}

		keys2 := []*ristretto255.Element{kp1.PublicKey(), kp2.PublicKey()}
		messages2 := [][]byte{[]byte("hello"), []byte("world")}
		if err := sig2.Check("sig", keys2, messages2); err != nil {
			t.Errorf("Check() = %v, want nil", err)
		}

		if err := sig1.Check("sig", keys2, messages2); !errors.Is(err, vrfchain.ErrMalformedToken) {
			t.Errorf("prior Check() = %v, want ErrMalformedToken", err)
		}
	})

	t.Run("append length mismatch", func(t *testing.T) {
		_, err := sig1.Append("sig", keys, nil, kp2, []byte("world"))
		if !errors.Is(err, vrfchain.ErrMalformedToken) {
			t.Errorf("Append() err = %v, want ErrMalformedToken", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		if err := sig1.Check("sig", []*ristretto255.Element{kp2.PublicKey()}, messages); !errors.Is(err, vrfchain.ErrInvalidSignature) {
			t.Errorf("Check() = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("wrong message", func(t *testing.T) {
		if sig1.Verify("sig", keys, [][]byte{[]byte("goodbye")}) {
			t.Error("Verify() = true, want = false")
		}
	})
}

func TestSignatureDeterminism(t *testing.T) {
	drbg := testdata.New("vrfchain determinism")
	kp1, kp2 := vrfchain.NewKeyPair(drbg.Scalar()), vrfchain.NewKeyPair(drbg.Scalar())

	a := vrfchain.NewSignature("det", kp1, []byte("message"))
	b := vrfchain.NewSignature("det", kp1, []byte("message"))
	if !a.Equal(b) {
		t.Fatal("NewSignature is not deterministic")
	}

	ab, err := a.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	bb, err := b.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	if string(ab) != string(bb) {
		t.Fatalf("encodings differ: %x != %x", ab, bb)
	}

	keys := []*ristretto255.Element{kp1.PublicKey()}
	messages := [][]byte{[]byte("message")}

	a2, err := a.Append("det", keys, messages, kp2, []byte("next"))
	if err != nil {
		t.Fatal(err)
	}

	b2, err := b.Append("det", keys, messages, kp2, []byte("next"))
	if err != nil {
		t.Fatal(err)
	}

	if !a2.Equal(b2) {
		t.Fatal("Append is not deterministic")
	}

	if a.Equal(a2) {
		t.Fatal("signatures of different chains are equal")
	}

	if c := vrfchain.NewSignature("det", kp1, []byte("other")); a.Equal(c) {
		t.Fatal("signatures of different messages are equal")
	}
}
