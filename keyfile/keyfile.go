// Package keyfile reads and writes key pairs on disk, optionally sealed with a passphrase.
//
// A key file is a version byte, a mode byte, and then either the 32-byte private key (mode 0) or a 16-byte salt, a
// 4-byte big-endian PBKDF2 iteration count, and the sealed private key (mode 1).
package keyfile

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/transcript"
	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrInvalidPassphrase is returned when a sealed key file cannot be opened with the given passphrase, or when a
	// sealed key file is read without one.
	ErrInvalidPassphrase = errors.New("keyfile: invalid passphrase")

	// ErrInvalidKeyFile is returned when a key file is not a well-formed encoding of a key pair.
	ErrInvalidKeyFile = errors.New("keyfile: invalid key file")
)

const (
	version    = 0x01
	modeClear  = 0x00
	modeSealed = 0x01
	saltSize   = 16
	keySize    = 32
)

// Iterations is the PBKDF2-SHA-256 iteration count used for newly sealed key files.
var Iterations uint32 = 600_000

// Write creates a key file at path containing the key pair. If passphrase is non-empty, the private key is sealed with
// a key derived from it. Write fails if the file already exists.
func Write(path string, kp *vrfchain.KeyPair, passphrase []byte) error {
	b, err := Marshal(kp, passphrase)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read returns the key pair stored at path.
func Read(path string, passphrase []byte) (*vrfchain.KeyPair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b, passphrase)
}

// Marshal encodes the key pair, sealing it if passphrase is non-empty.
func Marshal(kp *vrfchain.KeyPair, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return append([]byte{version, modeClear}, kp.PrivateKeyBytes()...), nil
	}

	b := make([]byte, 2+saltSize+4, 2+saltSize+4+keySize+transcript.TagSize)
	b[0], b[1] = version, modeSealed
	salt := b[2 : 2+saltSize]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: %w", vrfchain.ErrRandomnessUnavailable, err)
	}
	binary.BigEndian.PutUint32(b[2+saltSize:], Iterations)

	p := protocol(passphrase, salt, Iterations)
	return p.Seal("private key", b, kp.PrivateKeyBytes()), nil
}

// Unmarshal decodes a key pair encoded with [Marshal].
func Unmarshal(b []byte, passphrase []byte) (*vrfchain.KeyPair, error) {
	if len(b) < 2 || b[0] != version {
		return nil, ErrInvalidKeyFile
	}

	switch b[1] {
	case modeClear:
		return parse(b[2:])
	case modeSealed:
		if len(b) != 2+saltSize+4+keySize+transcript.TagSize {
			return nil, ErrInvalidKeyFile
		}

		if len(passphrase) == 0 {
			return nil, ErrInvalidPassphrase
		}

		salt := b[2 : 2+saltSize]
		iterations := binary.BigEndian.Uint32(b[2+saltSize:])
		if iterations == 0 {
			return nil, ErrInvalidKeyFile
		}

		p := protocol(passphrase, salt, iterations)
		d, err := p.Open("private key", nil, b[2+saltSize+4:])
		if err != nil {
			return nil, ErrInvalidPassphrase
		}
		return parse(d)
	default:
		return nil, ErrInvalidKeyFile
	}
}

func parse(d []byte) (*vrfchain.KeyPair, error) {
	if len(d) != keySize {
		return nil, ErrInvalidKeyFile
	}

	kp, err := vrfchain.ParsePrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
	}
	return kp, nil
}

func protocol(passphrase, salt []byte, iterations uint32) *transcript.Protocol {
	p := transcript.New("vrfchain.keyfile")
	p.Mix("salt", salt)
	p.Mix("iterations", binary.BigEndian.AppendUint32(nil, iterations))
	p.Mix("key", pbkdf2.Key(passphrase, salt, int(iterations), keySize, sha256.New))
	return p
}
