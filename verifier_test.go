package vrfchain_test

import (
	"errors"
	"testing"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/internal/testdata"
)

func TestVerifier(t *testing.T) {
	drbg := testdata.New("vrfchain verifier")
	token := chain(t, drbg, "verifier", 3)

	v, err := vrfchain.NewVerifier(16)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("valid", func(t *testing.T) {
		if !v.Verify(token) {
			t.Error("Verify() = false, want = true")
		}

		if got, want := v.Len(), 3; got != want {
			t.Errorf("Len() = %d, want %d", got, want)
		}
	})

	t.Run("shared prefix", func(t *testing.T) {
		extended, err := token.Append(vrfchain.NewKeyPair(drbg.Scalar()), []byte("more"))
		if err != nil {
			t.Fatal(err)
		}

		if err := v.Check(extended); err != nil {
			t.Fatalf("Check() = %v, want nil", err)
		}

		if got, want := v.Len(), 4; got != want {
			t.Errorf("Len() = %d, want %d", got, want)
		}
	})

	t.Run("agrees with token", func(t *testing.T) {
		b, err := token.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}

		// Flip a bit in the last message.
		b[len(b)-token.Signature().Len()*32-3*32-2] ^= 1

		var bad vrfchain.Token
		if err := bad.UnmarshalBinary(b); err != nil {
			t.Fatal(err)
		}

		if got, want := v.Check(&bad), bad.Check(); !errors.Is(got, want) || want == nil {
			t.Errorf("Verifier.Check() = %v, Token.Check() = %v", got, want)
		}
	})

	t.Run("domain", func(t *testing.T) {
		if err := v.CheckDomain(token, "verifier"); err != nil {
			t.Errorf("CheckDomain(verifier) = %v, want nil", err)
		}

		if err := v.CheckDomain(token, "other"); !errors.Is(err, vrfchain.ErrInvalidSignature) {
			t.Errorf("CheckDomain(other) = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("zero token", func(t *testing.T) {
		if err := v.Check(&vrfchain.Token{}); !errors.Is(err, vrfchain.ErrMalformedToken) {
			t.Errorf("Check() = %v, want ErrMalformedToken", err)
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		if _, err := vrfchain.NewVerifier(0); err == nil {
			t.Error("NewVerifier(0) should have failed")
		}
	})
}
