// Package store persists tokens in a goleveldb database, keyed by a digest of their encoding.
//
// Only tokens which verify are stored, and tokens are verified again when they are loaded, so a damaged or modified
// database never yields an invalid token.
package store

import (
	"encoding/hex"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/transcript"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

// IDSize is the size, in bytes, of a token ID.
const IDSize = 32

// ErrNotFound is returned when no token has the requested ID.
var ErrNotFound = errors.New("store: token not found")

// ID identifies a stored token.
type ID [IDSize]byte

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseID decodes a hex-encoded ID.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != IDSize {
		return id, errors.Errorf("store: invalid token ID %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// TokenID returns the ID a token is stored under.
func TokenID(t *vrfchain.Token) (ID, error) {
	b, err := t.MarshalBinary()
	if err != nil {
		return ID{}, err
	}
	return digest(b), nil
}

// Store is a token database. It is safe for concurrent use.
type Store struct {
	db       *leveldb.DB
	verifier *vrfchain.Verifier
	logger   *zap.Logger
	domain   string
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	cacheSize int
	domain    string
}

// WithLogger sets the store's logger. By default, the store does not log.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDomain restricts the store to tokens created under domain. Put and Get reject tokens of any other domain, and
// Iterate skips them. By default, tokens of every domain are accepted.
func WithDomain(domain string) Option {
	return func(o *options) {
		o.domain = domain
	}
}

// WithCacheSize sets the number of link points the store's verifier caches.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// Open opens or creates the database at path, recovering it if it is corrupted.
func Open(path string, opts ...Option) (*Store, error) {
	o := &opt.Options{
		OpenFilesCacheCapacity: 64,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}

	db, err := leveldb.OpenFile(path, o)
	if lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open token store %s", path)
	}

	return newStore(db, opts)
}

// OpenMemory returns a store which keeps its database in memory.
func OpenMemory(opts ...Option) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "open memory token store")
	}
	return newStore(db, opts)
}

func newStore(db *leveldb.DB, opts []Option) (*Store, error) {
	o := options{logger: zap.NewNop(), cacheSize: 1024}
	for _, opt := range opts {
		opt(&o)
	}

	verifier, err := vrfchain.NewVerifier(o.cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create verifier")
	}

	return &Store{db: db, verifier: verifier, logger: o.logger, domain: o.domain}, nil
}

// Put verifies and stores a token, returning its ID. Storing the same token twice is a no-op.
func (s *Store) Put(t *vrfchain.Token) (ID, error) {
	if err := s.check(t); err != nil {
		return ID{}, errors.Wrap(err, "store token")
	}

	b, err := t.MarshalBinary()
	if err != nil {
		return ID{}, errors.Wrap(err, "encode token")
	}

	id := digest(b)
	if err := s.db.Put(key(id), b, &opt.WriteOptions{Sync: true}); err != nil {
		return ID{}, errors.Wrapf(err, "put token %s", id)
	}

	s.logger.Debug("stored token", zap.Stringer("id", id), zap.Int("links", t.Len()), zap.String("domain", t.Domain()))
	return id, nil
}

// Get loads and verifies the token with the given ID. Returns ErrNotFound if there is none.
func (s *Store) Get(id ID) (*vrfchain.Token, error) {
	b, err := s.db.Get(key(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get token %s", id)
	}

	t, err := s.decode(id, b)
	if err != nil {
		return nil, err
	}

	if !s.accepts(t) {
		return nil, errors.Wrapf(vrfchain.ErrInvalidSignature, "token %s is not in domain %q", id, s.domain)
	}
	return t, nil
}

// Has returns true if a token with the given ID is stored.
func (s *Store) Has(id ID) (bool, error) {
	ok, err := s.db.Has(key(id), nil)
	return ok, errors.Wrapf(err, "has token %s", id)
}

// Delete removes the token with the given ID. Deleting a missing token is a no-op.
func (s *Store) Delete(id ID) error {
	if err := s.db.Delete(key(id), &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrapf(err, "delete token %s", id)
	}
	s.logger.Debug("deleted token", zap.Stringer("id", id))
	return nil
}

// Iterate calls fn with every stored token of the store's domain in ID order. Iteration stops at the first error, which
// is returned.
func (s *Store) Iterate(fn func(ID, *vrfchain.Token) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(tokenPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		var id ID
		copy(id[:], iter.Key()[len(tokenPrefix):])

		t, err := s.decode(id, iter.Value())
		if err != nil {
			return err
		}

		if !s.accepts(t) {
			continue
		}

		if err := fn(id, t); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "iterate tokens")
}

// Close closes the database.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "close token store")
}

func (s *Store) decode(id ID, b []byte) (*vrfchain.Token, error) {
	var t vrfchain.Token
	if err := t.UnmarshalBinary(b); err != nil {
		s.logger.Warn("undecodable token", zap.Stringer("id", id), zap.Error(err))
		return nil, errors.Wrapf(err, "decode token %s", id)
	}

	if digest(b) != id {
		s.logger.Warn("token does not match its ID", zap.Stringer("id", id))
		return nil, errors.Errorf("store: token %s does not match its ID", id)
	}

	if err := s.verifier.Check(&t); err != nil {
		s.logger.Warn("stored token does not verify", zap.Stringer("id", id), zap.Error(err))
		return nil, errors.Wrapf(err, "verify token %s", id)
	}
	return &t, nil
}

// check verifies the token, and its domain if the store has one.
func (s *Store) check(t *vrfchain.Token) error {
	if s.domain == "" {
		return s.verifier.Check(t)
	}
	return s.verifier.CheckDomain(t, s.domain)
}

func (s *Store) accepts(t *vrfchain.Token) bool {
	return s.domain == "" || t.Domain() == s.domain
}

const tokenPrefix = "token/"

func key(id ID) []byte {
	return append([]byte(tokenPrefix), id[:]...)
}

func digest(b []byte) ID {
	var id ID
	p := transcript.New("vrfchain.store")
	p.Mix("token", b)
	copy(id[:], p.Derive("id", nil, IDSize))
	return id
}
