package reveal

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/tispark/tispark/commitreveal"
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
	"github.com/tispark/tispark/finality"
	"github.com/tispark/tispark/log"
	"github.com/tispark/tispark/trie"
)

var (
	testSecret    = bytes.Repeat([]byte{0x5e}, 32)
	testPlaintext = []byte("the answer is 42")
	testContext   = commitreveal.Context{Height: 100, Timestamp: 1700000000, Metadata: []byte("round-1")}
	quietLogger   = log.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
)

func signers(n int, base byte) []*crypto.Ed25519Signer {
	out := make([]*crypto.Ed25519Signer, n)
	for i := range out {
		var seed [32]byte
		seed[0] = base
		seed[1] = byte(i)
		out[i] = crypto.NewEd25519SignerFromSeed(seed)
	}
	return out
}

func publicKeys(ss []*crypto.Ed25519Signer) []types.PublicKey {
	keys := make([]types.PublicKey, len(ss))
	for i, s := range ss {
		keys[i] = s.PublicKey()
	}
	return keys
}

// fixture is a local chain: a committee of four, one block whose state
// holds a sealed commitment, and the proofs a reveal needs.
type fixture struct {
	committee  []*crypto.Ed25519Signer
	emergency  *crypto.Ed25519Signer
	verifier   *finality.Verifier
	codec      *commitreveal.Codec
	builder    *trie.Builder
	commitment *types.Commitment
	header     types.ConsensusState
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		committee: signers(4, 1),
		emergency: signers(1, 9)[0],
		codec:     commitreveal.NewCodec(nil),
	}
	emKey := f.emergency.PublicKey()
	set, err := finality.NewAuthoritySet(publicKeys(f.committee), &emKey)
	if err != nil {
		t.Fatal(err)
	}
	if f.verifier, err = finality.NewVerifier(set, crypto.NewSignatureCache(64)); err != nil {
		t.Fatal(err)
	}
	f.verifier.SetLogger(quietLogger)

	if f.commitment, err = f.codec.Seal(testSecret, testContext, testPlaintext, types.DefaultBounds()); err != nil {
		t.Fatal(err)
	}
	if f.builder, err = trie.NewBuilder(crypto.Blake2); err != nil {
		t.Fatal(err)
	}
	f.store(t, f.commitment)
	for i := 0; i < 20; i++ {
		f.builder.Put(crypto.Blake2b256([]byte{byte(i)}), bytes.Repeat([]byte{byte(i)}, 50))
	}

	f.header = types.ConsensusState{
		Block:          100,
		ParentHash:     types.HexToHash("0x01"),
		ExtrinsicsRoot: types.HexToHash("0x02"),
		StateRoot:      f.builder.Root(),
		Digest: types.ConsensusDigest{
			PreRuntime: []byte{0xb9, 0x80, 0x26, 0xe1, 0, 0, 0, 0},
			Seal:       bytes.Repeat([]byte{0xee}, 64),
		},
	}
	return f
}

func (f *fixture) store(t *testing.T, c *types.Commitment) {
	t.Helper()
	record, err := c.EncodeRecord()
	if err != nil {
		t.Fatal(err)
	}
	f.builder.Put(c.ID[:], record)
}

// consensusProof signs the header with authorities 0, 2 and 3.
func (f *fixture) consensusProof(t *testing.T) *types.ConsensusProof {
	t.Helper()
	hash := finality.BuildConsensusHash(&f.header)
	set, err := finality.NewSignatureSet(4,
		finality.IndexedSignature{Index: 0, Signature: f.committee[0].Sign(hash[:])},
		finality.IndexedSignature{Index: 2, Signature: f.committee[2].Sign(hash[:])},
		finality.IndexedSignature{Index: 3, Signature: f.committee[3].Sign(hash[:])},
	)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := finality.EncodeJustification(&finality.Justification{Kind: finality.KindCommittee, Committee: set})
	if err != nil {
		t.Fatal(err)
	}
	return &types.ConsensusProof{Justification: raw, State: f.header, UntrustedAuthorities: publicKeys(f.committee)}
}

func (f *fixture) stateProof(t *testing.T, key []byte) *types.StateProof {
	t.Helper()
	sp, err := f.builder.StateProof(key, testContext.Timestamp, uint64(f.header.Block))
	if err != nil {
		t.Fatal(err)
	}
	return sp
}

func (f *fixture) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(f.verifier, f.codec, types.DefaultBounds(), append([]Option{WithLogger(quietLogger)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func expectRejected(t *testing.T, err error, stage Stage, reasons ...error) {
	t.Helper()
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *RejectedError, got %v", err)
	}
	if rej.Stage != stage {
		t.Fatalf("rejected after %s, want %s (%v)", rej.Stage, stage, err)
	}
	for _, r := range reasons {
		if !errors.Is(err, r) {
			t.Fatalf("error %v does not match %v", err, r)
		}
	}
}

// -- Accepted reveals --

func TestRevealEndToEnd(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	id := f.commitment.ID

	pt, err := p.Reveal(testSecret, f.consensusProof(t), f.stateProof(t, id[:]), id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, testPlaintext) {
		t.Fatalf("plaintext %q, want %q", pt, testPlaintext)
	}

	res, err := p.Run(testSecret, &Request{CommitID: id, Consensus: f.consensusProof(t), State: f.stateProof(t, id[:])})
	if err != nil {
		t.Fatal(err)
	}
	key, _ := f.codec.Reveal(testSecret, id)
	if !bytes.Equal(res.Key, key) {
		t.Fatal("result key differs from derived key")
	}
	if res.Certificate.Block != 100 || res.Certificate.Kind != finality.KindCommittee {
		t.Fatalf("certificate: %+v", res.Certificate)
	}
	if len(res.Certificate.Signers) != 3 {
		t.Fatalf("signers: %v", res.Certificate.Signers)
	}
	if !bytes.Equal(res.Commitment.Metadata, testContext.Metadata) {
		t.Fatalf("metadata %q", res.Commitment.Metadata)
	}
}

func TestRevealEmergencyFinality(t *testing.T) {
	f := newFixture(t)
	hash := finality.BuildConsensusHash(&f.header)
	raw, err := finality.EncodeJustification(&finality.Justification{
		Kind:      finality.KindEmergency,
		Emergency: f.emergency.Sign(hash[:]),
	})
	if err != nil {
		t.Fatal(err)
	}
	cp := &types.ConsensusProof{Justification: raw, State: f.header, UntrustedAuthorities: publicKeys(f.committee)}
	id := f.commitment.ID
	pt, err := f.pipeline(t).Reveal(testSecret, cp, f.stateProof(t, id[:]), id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, testPlaintext) {
		t.Fatalf("plaintext %q", pt)
	}
}

func TestRevealStorageKeyBinding(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	p := f.pipeline(t, WithStorageKey(func(id types.Hash) []byte { return id[:] }))
	if _, err := p.Reveal(testSecret, f.consensusProof(t), f.stateProof(t, id[:]), id); err != nil {
		t.Fatal(err)
	}
}

// -- Consensus stage --

func TestRevealMutatedJustification(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	id := f.commitment.ID
	good := f.consensusProof(t)
	sp := f.stateProof(t, id[:])

	for i := range good.Justification {
		for _, mask := range []byte{0x01, 0x80} {
			cp := *good
			cp.Justification = bytes.Clone(good.Justification)
			cp.Justification[i] ^= mask
			_, err := p.Reveal(testSecret, &cp, sp, id)
			expectRejected(t, err, StageRequested, ErrInvalidConsensusProof)
		}
	}
}

func TestRevealMutatedHeader(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	cp := f.consensusProof(t)
	cp.State.Block++
	_, err := f.pipeline(t).Reveal(testSecret, cp, f.stateProof(t, id[:]), id)
	expectRejected(t, err, StageRequested, ErrInvalidConsensusProof, finality.ErrInvalidSignature)
}

func TestRevealForeignAuthorities(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	cp := f.consensusProof(t)
	cp.UntrustedAuthorities = publicKeys(signers(4, 7))
	_, err := f.pipeline(t).Reveal(testSecret, cp, f.stateProof(t, id[:]), id)
	expectRejected(t, err, StageRequested, ErrInvalidConsensusProof, finality.ErrUntrustedAuthorities)
}

func TestRevealMissingProofs(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	p := f.pipeline(t)
	_, err := p.Reveal(testSecret, nil, f.stateProof(t, id[:]), id)
	expectRejected(t, err, StageRequested, ErrInvalidConsensusProof)
	_, err = p.Reveal(testSecret, f.consensusProof(t), nil, id)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof)
}

// -- State stage --

func TestRevealRootMismatch(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	cp := f.consensusProof(t)

	// A valid proof for the same record, but in a trie the block does not
	// commit to.
	f.builder.Put([]byte("extra"), []byte("entry"))
	sp := f.stateProof(t, id[:])
	if _, err := trie.ExtractSingleValue(sp); err != nil {
		t.Fatalf("proof should verify on its own root: %v", err)
	}
	_, err := f.pipeline(t).Reveal(testSecret, cp, sp, id)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof, ErrRootMismatch)
}

func TestRevealTwoKeys(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	sp := f.stateProof(t, id[:])
	sp.Keys = append(sp.Keys, sp.Keys[0])
	_, err := f.pipeline(t).Reveal(testSecret, f.consensusProof(t), sp, id)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof, trie.ErrInvalidKeys)
}

func TestRevealAbsentRecord(t *testing.T) {
	f := newFixture(t)
	missing := crypto.Blake2b256Hash([]byte("never committed"))
	_, err := f.pipeline(t).Reveal(testSecret, f.consensusProof(t), f.stateProof(t, missing[:]), missing)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof, trie.ErrMissingValue)
}

func TestRevealTamperedProof(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	sp := f.stateProof(t, id[:])
	blob, err := trie.DecodeProofBlob(sp.Proof.Raw)
	if err != nil {
		t.Fatal(err)
	}
	last := blob.Nodes[len(blob.Nodes)-1]
	last[len(last)-1] ^= 1
	if sp.Proof.Raw, err = trie.EncodeProofBlob(blob.Hasher, blob.Nodes); err != nil {
		t.Fatal(err)
	}
	_, err = f.pipeline(t).Reveal(testSecret, f.consensusProof(t), sp, id)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof, trie.ErrStateVerify)
}

func TestRevealMalformedRecord(t *testing.T) {
	f := newFixture(t)
	id := crypto.Blake2b256Hash([]byte("garbage"))
	f.builder.Put(id[:], []byte("not a record"))
	f.header.StateRoot = f.builder.Root()
	_, err := f.pipeline(t).Reveal(testSecret, f.consensusProof(t), f.stateProof(t, id[:]), id)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof)
}

func TestRevealAlreadyRevealed(t *testing.T) {
	f := newFixture(t)
	key, _ := f.codec.Reveal(testSecret, f.commitment.ID)
	revealed, err := f.commitment.WithRevealedKey(key)
	if err != nil {
		t.Fatal(err)
	}
	f.store(t, revealed)
	f.header.StateRoot = f.builder.Root()
	id := f.commitment.ID
	_, err = f.pipeline(t).Reveal(testSecret, f.consensusProof(t), f.stateProof(t, id[:]), id)
	expectRejected(t, err, StageConsensusVerified, types.ErrAlreadyRevealed)
}

func TestRevealWrongStorageKey(t *testing.T) {
	f := newFixture(t)
	other, err := f.codec.Seal(testSecret, commitreveal.Context{Height: 101, Timestamp: 1700000006}, []byte("other"), types.DefaultBounds())
	if err != nil {
		t.Fatal(err)
	}
	f.store(t, other)
	f.header.StateRoot = f.builder.Root()
	id := f.commitment.ID

	// Without binding the foreign record still fails to decrypt.
	_, err = f.pipeline(t).Reveal(testSecret, f.consensusProof(t), f.stateProof(t, other.ID[:]), id)
	expectRejected(t, err, StageKeyDerived, ErrDecryptionRejected)

	p := f.pipeline(t, WithStorageKey(func(id types.Hash) []byte { return id[:] }))
	_, err = p.Reveal(testSecret, f.consensusProof(t), f.stateProof(t, other.ID[:]), id)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof, ErrStorageKeyMismatch)
}

// -- Decryption stage --

func TestRevealWrongSecret(t *testing.T) {
	f := newFixture(t)
	id := f.commitment.ID
	p := f.pipeline(t)
	_, err := p.Reveal(bytes.Repeat([]byte{0x11}, 32), f.consensusProof(t), f.stateProof(t, id[:]), id)
	expectRejected(t, err, StageKeyDerived, ErrDecryptionRejected)

	_, err = p.Reveal(nil, f.consensusProof(t), f.stateProof(t, id[:]), id)
	expectRejected(t, err, StageStateVerified, ErrDecryptionRejected, commitreveal.ErrEmptySecret)
}

// -- Live chain data --

// Finality and storage proof data of Aleph Zero block #81943. The storage
// proof was taken against a different block, so its root is not the
// header's state root.
const (
	liveJustification = "0300c600001001cfa3a97cb0c48578c61884e1180975d63e70faaeeab3f9418cca164a296682c43236cb0af04dfdaa23fa72b913a5f4acdb7785c79eb5455536454f23a0602a0a000153ceebaa19d1b60622532c3d6f68737321138f88cac38af758f14ae58f29f84aabc2140261ac9150b92f9d9bc5d47621da258fd9d186b040e3c3f90e4b93830c017b159a6d634ee44a20442c875234061026ce6418f5512be9d2dbb0db707568955d536e3d7d20d79d39afcb37f4aa3ff54f31d5c5bcb2eeb39aefb652b1fa7801"
	liveStorageKey    = "5c0d1176a568c1f92944340dbfed9e9c530ebca703c85910e7164cb7d1c9e47b"
	liveStorageRoot   = "48ad5b198c2750f37b4067360da4636947d1ed48c65ad3a3b21e33daac957865"
)

var (
	liveAuthorities = []string{
		"a824108d28376dea1ef85f14a8bd52e4448429c3ac09572b6e1dc324fbbdbd07",
		"ed0d45bd4a5c55e3c1855187ac903700d7f642c46561ce4466d6d4eef2c4dbbc",
		"7a46880947ce98d4379d0bedd793f4a99ee6cd3710b10196d9a094abed234378",
		"e852b5b72299153d1f61b4a4bf7f28474ae8fa3d030d98b6bcb53b8e5931e638",
	}
	liveProofNodes = []string{
		"5f030ebca703c85910e7164cb7d1c9e47b80025342a214a9c91f13135ccd686a047c7efee5ef4c34e1859051bf83dd9e1428",
		"80809180b0fc4f8982c04cf4ff94444ded8cafa62bf35ceef1edc448d76a4f14351bb51780a6a6777fbe4ba8aed68dc6c1c71453e3c83636df239621bf967e0e35c651275580dfee03ced33eb959c00afa96f46c230bc1ea27102268f0c345937041070efb7a803eef802c531a2e5a05649bd12ae0283fe97c6e4ceb3af6dda147e42fdb48e179",
		"80bdb98048920e65e43b3e207c7a87879da5786a52dbcc4f12bb529bd5ad3a40427cdd998047ff6c763c2b0c08e570bafa47077407d332acda41bbbad9dcd5036712cdb456800f1dd84d371a63b592c096b9d9dcd0b795d6c168f14e36b650ef3a227d1ed7ca809496b5b0492db5ad94734ee4d269495f4901d2b8f5bf7a4b0a31d2a5e68e703f80427524c00b9fb63d6a85f6068123425c121fbc6d640c89dd2a01d326b5acbb48807cf9e9a2267f028b3b7c85033101fbe3af8abc8ccd0c19d93179a7e2b5d1a647806f4f2a8981de1c8b077af2e7962ceee5d73825e2e866d394c70650af4dd3f27280a07c157695ad8163c4434f16989b6b924cd895a3d3e551a81554b08dd80851658014ec95c09a545e281a2823d77874166da16751a5c97546a4f9936cc3bd4263c5804349a8554a46fe561c9367a3cae14092fb5535b942063755aff446d630f44d0c8044f9d43b39ef82e076cae4f255a92060ab8907bd478090b7f6ab7e36a736b574",
		"9e0d1176a568c1f92944340dbfed9e9c3000505f0e7b9012096b41c4eb3aaf947f6ea429080000807beb14548ee4710dc017ac798af16316362d24bb7041c725ee358f4d72743b8e",
	}
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRevealLiveVectors(t *testing.T) {
	keys := make([]types.PublicKey, len(liveAuthorities))
	for i, s := range liveAuthorities {
		pk, err := types.PublicKeyFromBytes(mustHex(t, s))
		if err != nil {
			t.Fatal(err)
		}
		keys[i] = pk
	}
	set, err := finality.NewAuthoritySet(keys, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := finality.NewVerifier(set, nil)
	if err != nil {
		t.Fatal(err)
	}
	cp := &types.ConsensusProof{
		Justification: mustHex(t, liveJustification),
		State: types.ConsensusState{
			Block:          81943,
			ExtrinsicsRoot: types.HexToHash("53cec44cdabc023175d84f55e4f42255419c67f87ae864d59a07b4c303560775"),
			StateRoot:      types.HexToHash("c312a0d65ee784da8dc7fbd7abb4ada9a3affe8e14415484d56b4f5642c123c2"),
			ParentHash:     types.HexToHash("79bfc3089355ae580d473a339935deeffab2f5a07a3d880aa253d6d4b212341a"),
			Digest: types.ConsensusDigest{
				PreRuntime: mustHex(t, "b98026e100000000"),
				Seal:       mustHex(t, "0ada5463c19e7a08495dc58decd5a4693e40c44c2f3bcea152b189ac4382c24e3bfed0fae1e88c9a295f70f434bae198d5d6928d309625faa773aab63133ed89"),
			},
		},
		UntrustedAuthorities: keys,
	}
	nodes := make([][]byte, len(liveProofNodes))
	for i, n := range liveProofNodes {
		nodes[i] = mustHex(t, n)
	}
	raw, err := trie.EncodeProofBlob(crypto.Blake2, nodes)
	if err != nil {
		t.Fatal(err)
	}
	sp := &types.StateProof{
		Root:  types.StateCommitment{StateRoot: types.HexToHash(liveStorageRoot)},
		Proof: types.Proof{Height: 81943, Raw: raw},
	}
	sp.Keys = append(sp.Keys, mustHex(t, liveStorageKey))

	p, err := New(v, nil, types.DefaultBounds(), WithLogger(quietLogger))
	if err != nil {
		t.Fatal(err)
	}
	id := types.BytesToHash(mustHex(t, liveStorageKey))
	_, err = p.Reveal(testSecret, cp, sp, id)
	expectRejected(t, err, StageConsensusVerified, ErrInvalidStateProof, ErrRootMismatch)

	// A single flipped byte in the justification fails one stage earlier.
	cp.Justification[len(cp.Justification)-1] ^= 0x01
	_, err = p.Reveal(testSecret, cp, sp, id)
	expectRejected(t, err, StageRequested, ErrInvalidConsensusProof)
}

// -- Concurrency --

func TestRevealConcurrentWithRotation(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	id := f.commitment.ID
	cp := f.consensusProof(t)
	sp := f.stateProof(t, id[:])
	emKey := f.emergency.PublicKey()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	stop := make(chan struct{})

	// Rotations install fresh copies of the same roster; every reveal must
	// observe a whole set.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			set, err := finality.NewAuthoritySet(publicKeys(f.committee), &emKey)
			if err == nil {
				err = f.verifier.Rotate(set)
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()

	var readers sync.WaitGroup
	for i := 0; i < 32; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 10; j++ {
				pt, err := p.Reveal(testSecret, cp, sp, id)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(pt, testPlaintext) {
					errs <- errors.New("wrong plaintext")
					return
				}
			}
		}()
	}
	readers.Wait()
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	// After rotating to a foreign committee the same proofs are rejected.
	foreign, err := finality.NewAuthoritySet(publicKeys(signers(4, 5)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.verifier.Rotate(foreign); err != nil {
		t.Fatal(err)
	}
	_, err = p.Reveal(testSecret, cp, sp, id)
	expectRejected(t, err, StageRequested, ErrInvalidConsensusProof, finality.ErrUntrustedAuthorities)
}

// -- Construction --

func TestNew(t *testing.T) {
	f := newFixture(t)
	if _, err := New(nil, f.codec, types.DefaultBounds()); err == nil {
		t.Fatal("expected error for nil verifier")
	}
	if _, err := New(f.verifier, f.codec, types.Bounds{}); !errors.Is(err, types.ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestStageString(t *testing.T) {
	want := []string{"requested", "consensus_verified", "state_verified", "key_derived", "revealed", "rejected"}
	for i, w := range want {
		if got := Stage(i).String(); got != w {
			t.Fatalf("Stage(%d) = %q, want %q", i, got, w)
		}
	}
	if got := Stage(42).String(); got != "stage(42)" {
		t.Fatalf("unknown stage = %q", got)
	}
}
