package metrics

// Metrics reported by the commit and reveal services. All live in
// DefaultRegistry.

var (
	// CommitsCreated counts commitments sealed and stored.
	CommitsCreated = DefaultRegistry.Counter("commit.created")
	// CommitsDuplicate counts commits refused because the id already existed.
	CommitsDuplicate = DefaultRegistry.Counter("commit.duplicate")

	// RevealsRequested counts reveal requests entering the pipeline.
	RevealsRequested = DefaultRegistry.Counter("reveal.requested")
	// RevealsAccepted counts reveals that returned plaintext.
	RevealsAccepted = DefaultRegistry.Counter("reveal.accepted")
	// RevealsRejected counts rejected reveals by pipeline stage.
	RevealsRejected = DefaultRegistry.CounterVec("reveal.rejected")
	// RevealLatency records end-to-end reveal time in microseconds.
	RevealLatency = DefaultRegistry.Histogram("reveal.latency_us")

	// ConsensusVerified counts consensus proofs accepted by the verifier.
	ConsensusVerified = DefaultRegistry.Counter("finality.verified")
	// AuthorityRotations counts authority set replacements.
	AuthorityRotations = DefaultRegistry.Counter("finality.rotations")
	// AuthoritySetSize tracks the size of the installed authority set.
	AuthoritySetSize = DefaultRegistry.Gauge("finality.authorities")
)
