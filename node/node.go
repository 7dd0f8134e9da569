package node

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tispark/tispark/commitreveal"
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
	"github.com/tispark/tispark/finality"
	"github.com/tispark/tispark/log"
	"github.com/tispark/tispark/metrics"
	"github.com/tispark/tispark/reveal"
	"github.com/tispark/tispark/store"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("node: closed")

// Node holds a commitment secret and serves commits and reveals against a
// remote chain's finality committee.
type Node struct {
	config *Config
	log    *log.Logger
	secret []byte

	codec    *commitreveal.Codec
	verifier *finality.Verifier
	pipeline *reveal.Pipeline
	store    store.CommitmentStore

	mu     sync.RWMutex
	closed bool
}

// Option configures a Node.
type Option func(*options)

type options struct {
	logger  *log.Logger
	entropy io.Reader
	store   store.CommitmentStore
}

// WithLogger replaces the logger built from the log configuration.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEntropy sets the randomness source used for commit ids.
func WithEntropy(r io.Reader) Option {
	return func(o *options) { o.entropy = r }
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s store.CommitmentStore) Option {
	return func(o *options) { o.store = s }
}

// New validates config and creates a node. Any configuration error is
// returned here; requests never fail because of configuration.
func New(config *Config, secret []byte, opts ...Option) (*Node, error) {
	if config == nil {
		return nil, errors.New("node: nil config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, commitreveal.ErrEmptySecret
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		level, _ := log.ParseLevel(config.Log.Level)
		l, err := log.NewWithOptions(log.Options{Level: level, Format: config.Log.Format})
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		logger = l
	}

	keys, emergency, err := config.AuthorityKeys()
	if err != nil {
		return nil, err
	}
	set, err := finality.NewAuthoritySet(keys, emergency)
	if err != nil {
		return nil, fmt.Errorf("node: authority set: %w", err)
	}
	var cache *crypto.SignatureCache
	if config.SignatureCacheSize > 0 {
		cache = crypto.NewSignatureCache(config.SignatureCacheSize)
	}
	verifier, err := finality.NewVerifier(set, cache)
	if err != nil {
		return nil, fmt.Errorf("node: verifier: %w", err)
	}
	verifier.SetLogger(logger.Module("finality"))

	codec := commitreveal.NewCodec(o.entropy)
	pipeOpts := []reveal.Option{reveal.WithLogger(logger.Module("reveal"))}
	if config.BindStorageKey {
		pipeOpts = append(pipeOpts, reveal.WithStorageKey(func(id types.Hash) []byte { return id[:] }))
	}
	pipeline, err := reveal.New(verifier, codec, config.Bounds, pipeOpts...)
	if err != nil {
		return nil, fmt.Errorf("node: pipeline: %w", err)
	}

	st := o.store
	if st == nil {
		if st, err = openStore(config); err != nil {
			return nil, err
		}
	}

	n := &Node{
		config:   config,
		log:      logger.Module("node"),
		secret:   append([]byte(nil), secret...),
		codec:    codec,
		verifier: verifier,
		pipeline: pipeline,
		store:    st,
	}
	n.log.Info("node created",
		"authorities", set.Len(),
		"emergency", emergency != nil,
		"store", config.Store.Backend,
	)
	return n, nil
}

func openStore(config *Config) (store.CommitmentStore, error) {
	switch config.Store.Backend {
	case BackendBadger:
		return store.OpenBadger(config.ResolvePath(config.Store.Path))
	default:
		return store.NewMemoryStore(), nil
	}
}

// Config returns the node's configuration.
func (n *Node) Config() *Config { return n.config }

// Verifier returns the node's consensus verifier.
func (n *Node) Verifier() *finality.Verifier { return n.verifier }

func (n *Node) checkOpen() error {
	if n.closed {
		return ErrClosed
	}
	return nil
}

// Commit seals plaintext under a fresh commitment id and stores it.
func (n *Node) Commit(ctx commitreveal.Context, plaintext []byte) (*types.Commitment, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	c, err := n.codec.Seal(n.secret, ctx, plaintext, n.config.Bounds)
	if err != nil {
		return nil, err
	}
	if err := n.store.Insert(c); err != nil {
		if errors.Is(err, store.ErrAlreadyCommitted) {
			metrics.CommitsDuplicate.Inc()
		}
		return nil, err
	}
	metrics.CommitsCreated.Inc()
	n.log.Info("commitment created", "id", c.ID, "height", ctx.Height, "size", len(plaintext))
	return c, nil
}

// Get returns a stored commitment.
func (n *Node) Get(id types.Hash) (*types.Commitment, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	return n.store.Get(id)
}

// VerifyConsensus checks a consensus proof against the installed
// authority set.
func (n *Node) VerifyConsensus(cp *types.ConsensusProof) (*finality.Certificate, error) {
	if cp == nil {
		return nil, finality.ErrInvalidConsensusProof
	}
	return n.verifier.VerifyProof(cp)
}

// Reveal runs the reveal pipeline for commitID and marks the local copy of
// the commitment revealed. A commitment only known to the remote chain is
// revealed without a local update; a local copy can be revealed once.
func (n *Node) Reveal(commitID types.Hash, cp *types.ConsensusProof, sp *types.StateProof) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	res, err := n.pipeline.Run(n.secret, &reveal.Request{CommitID: commitID, Consensus: cp, State: sp})
	if err != nil {
		return nil, err
	}
	_, err = n.store.Reveal(commitID, res.Key)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		n.log.Debug("revealed commitment has no local copy", "id", commitID)
	default:
		return nil, err
	}
	return res.Plaintext, nil
}

// NewRevealProof derives the key of a stored commitment and packages it for
// publication.
func (n *Node) NewRevealProof(id types.Hash) (*types.RevealProof, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := n.store.Get(id); err != nil {
		return nil, err
	}
	return n.codec.NewRevealProof(n.secret, id)
}

// ApplyRevealProof opens a stored commitment with a published key and
// records the key. The key length is checked before any lookup or
// decryption.
func (n *Node) ApplyRevealProof(proof *types.RevealProof) ([]byte, error) {
	if proof == nil {
		return nil, errors.New("node: nil reveal proof")
	}
	if err := proof.CheckKeyLength(n.config.Bounds.KeySize); err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	c, err := n.store.Get(proof.CommitID)
	if err != nil {
		return nil, err
	}
	if c.HasRevealedKey() {
		return nil, store.ErrAlreadyRevealed
	}
	plaintext, err := n.codec.OpenWithProof(proof, c)
	if err != nil {
		n.log.Debug("reveal proof rejected", "id", proof.CommitID, "err", err)
		return nil, err
	}
	if _, err := n.store.Reveal(proof.CommitID, proof.Secret); err != nil {
		return nil, err
	}
	metrics.RevealsAccepted.Inc()
	n.log.Info("reveal proof applied", "id", proof.CommitID)
	return plaintext, nil
}

// RotateAuthorities installs a new committee and emergency key.
func (n *Node) RotateAuthorities(keys []types.PublicKey, emergency *types.PublicKey) error {
	set, err := finality.NewAuthoritySet(keys, emergency)
	if err != nil {
		return err
	}
	return n.verifier.Rotate(set)
}

// Close closes the store. Calls after the first return ErrClosed.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	n.closed = true
	for i := range n.secret {
		n.secret[i] = 0
	}
	n.log.Info("node closed")
	return n.store.Close()
}
