package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/keyfile"
	"github.com/codahale/vrfchain/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	keyfile.Iterations = 1_000
}

func TestKeygenPubkey(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key")

	out, err := run(t, "", "keygen", key)
	require.NoError(t, err)

	pub, err := run(t, "", "pubkey", key)
	require.NoError(t, err)
	assert.Equal(t, out, pub)

	_, err = run(t, "", "keygen", key)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestSealedKey(t *testing.T) {
	key := filepath.Join(t.TempDir(), "key")

	_, err := run(t, "", "keygen", "--passphrase", "hunter2", key)
	require.NoError(t, err)

	_, err = run(t, "", "pubkey", key)
	assert.ErrorIs(t, err, keyfile.ErrInvalidPassphrase)

	t.Setenv("VRFCHAIN_PASSPHRASE", "hunter2")
	_, err = run(t, "", "pubkey", key)
	assert.NoError(t, err)
}

func TestCreateAppendVerify(t *testing.T) {
	dir := t.TempDir()
	keys := newKeys(t, dir, 3)

	token, err := run(t, "", "create", "--domain", "example", keys[0], "hello")
	require.NoError(t, err)

	token, err = run(t, "", "append", "--domain", "example", keys[1], token, "world")
	require.NoError(t, err)

	token, err = run(t, token, "append", "--domain", "example", keys[2], "-", "!!!")
	require.NoError(t, err)

	out, err := run(t, "", "verify", "--domain", "example", token)
	require.NoError(t, err)
	assert.Equal(t, "valid (example, 3 links)", out)

	out, err = run(t, token, "inspect", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"example"`)
	assert.Contains(t, out, "valid:  true")
	for _, m := range []string{`"hello"`, `"world"`, `"!!!"`} {
		assert.Contains(t, out, m)
	}
}

func TestVerifyInvalid(t *testing.T) {
	dir := t.TempDir()
	keys := newKeys(t, dir, 2)

	text, err := run(t, "", "create", keys[0], "hello")
	require.NoError(t, err)

	var token vrfchain.Token
	require.NoError(t, token.UnmarshalText([]byte(text)))
	b, err := token.MarshalBinary()
	require.NoError(t, err)

	// Change the message, which follows the version, domain, count, and key.
	i := bytes.Index(b, []byte("hello"))
	require.Positive(t, i)
	b[i] = 'j'
	require.NoError(t, token.UnmarshalBinary(b))
	bad, err := token.MarshalText()
	require.NoError(t, err)

	_, err = run(t, "", "verify", string(bad))
	assert.ErrorIs(t, err, vrfchain.ErrInvalidSignature)

	_, err = run(t, "", "append", keys[1], string(bad), "world")
	assert.ErrorIs(t, err, vrfchain.ErrInvalidToken)

	_, err = run(t, "", "verify", "not a token")
	assert.ErrorIs(t, err, vrfchain.ErrInvalidEncoding)
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	keys := newKeys(t, dir, 2)
	db := filepath.Join(dir, "tokens")

	first, err := run(t, "", "create", "--store", db, "--save", keys[0], "hello")
	require.NoError(t, err)

	second, err := run(t, "", "append", "--store", db, "--save", keys[1], first, "world")
	require.NoError(t, err)

	out, err := run(t, "", "list", "--store", db)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)

	for _, text := range []string{first, second} {
		var token vrfchain.Token
		require.NoError(t, token.UnmarshalText([]byte(text)))
		id, err := store.TokenID(&token)
		require.NoError(t, err)

		assert.Contains(t, out, id.String()+"\t"+strconv.Itoa(token.Len())+"\tvrfchain")

		got, err := run(t, "", "get", "--store", db, id.String())
		require.NoError(t, err)
		assert.Equal(t, text, got)
	}

	_, err = run(t, "", "get", "--store", db, store.ID{}.String())
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = run(t, "", "get", "--store", db, "nope")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	keys := newKeys(t, dir, 1)

	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("domain: configured\nlog-level: error\n"), 0o600))

	token, err := run(t, "", "create", "--config", cfg, keys[0], "hello")
	require.NoError(t, err)

	out, err := run(t, "", "verify", "--config", cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "valid (configured, 1 links)", out)

	_, err = run(t, "", "verify", token)
	assert.ErrorIs(t, err, vrfchain.ErrInvalidSignature)

	_, err = run(t, "", "verify", "--config", filepath.Join(dir, "missing.yaml"), token)
	assert.Error(t, err)

	_, err = run(t, "", "verify", "--log-level", "loud", token)
	assert.Error(t, err)
}

func TestDomainMismatch(t *testing.T) {
	dir := t.TempDir()
	keys := newKeys(t, dir, 2)
	db := filepath.Join(dir, "tokens")

	token, err := run(t, "", "create", "--domain", "attacker", "--store", db, "--save", keys[0], "hello")
	require.NoError(t, err)

	_, err = run(t, "", "verify", "--domain", "payments", token)
	assert.ErrorIs(t, err, vrfchain.ErrInvalidSignature)

	t.Setenv("VRFCHAIN_DOMAIN", "payments")
	_, err = run(t, "", "verify", token)
	assert.ErrorIs(t, err, vrfchain.ErrInvalidSignature)

	_, err = run(t, "", "append", keys[1], token, "world")
	assert.ErrorIs(t, err, vrfchain.ErrInvalidToken)

	out, err := run(t, "", "list", "--store", db)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, "", "verify", "--domain", "attacker", token)
	require.NoError(t, err)
	assert.Equal(t, "valid (attacker, 1 links)", out)
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	return strings.TrimSpace(out.String()), err
}

func newKeys(t *testing.T, dir string, n int) []string {
	t.Helper()

	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, "key"+strconv.Itoa(i))
		_, err := run(t, "", "keygen", paths[i])
		require.NoError(t, err)
	}
	return paths
}
