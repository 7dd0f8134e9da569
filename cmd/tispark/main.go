// Command tispark seals payloads into commitments and reveals them once the
// remote chain's finality committee has finalized the block that holds them.
//
// Usage:
//
//	tispark commit           -config FILE [-height N] [-timestamp T] [-metadata HEX] [-in FILE | DATA]
//	tispark reveal           -config FILE -request FILE
//	tispark verify-consensus -config FILE -proof FILE
//	tispark version
//
// Request and proof files are JSON with 0x-prefixed hex byte fields.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tispark/tispark/commitreveal"
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/log"
	"github.com/tispark/tispark/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// revealRequest is the JSON input of the reveal command.
type revealRequest struct {
	CommitID       types.Hash            `json:"commit_id"`
	ConsensusProof *types.ConsensusProof `json:"consensus_proof"`
	StateProof     *types.StateProof     `json:"state_proof"`
}

// commitOutput is printed by the commit command. Record is the value to
// publish in the remote chain's state under the commitment id.
type commitOutput struct {
	Commitment *types.Commitment `json:"commitment"`
	Record     hexutil.Bytes     `json:"record"`
}

type revealOutput struct {
	CommitID  types.Hash    `json:"commit_id"`
	Plaintext hexutil.Bytes `json:"plaintext"`
}

type certificateOutput struct {
	BlockHash types.Hash `json:"block_hash"`
	Block     uint32     `json:"block"`
	StateRoot types.Hash `json:"state_root"`
	Kind      string     `json:"kind"`
	Signers   []int      `json:"signers,omitempty"`
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "commit":
		return runCommit(args[1:], stdout, stderr)
	case "reveal":
		return runReveal(args[1:], stdout, stderr)
	case "verify-consensus":
		return runVerifyConsensus(args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "tispark %s (commit %s)\n", version, commit)
		return 0
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tispark <commit|reveal|verify-consensus|version> [flags]")
}

func runCommit(args []string, stdout, stderr io.Writer) int {
	fs := newCustomFlagSet("commit", stderr)
	configPath := fs.String("config", "tispark.yaml", "configuration file")
	input := fs.String("in", "", "read the payload from this file")
	var ctx commitreveal.Context
	var metadata hexutil.Bytes
	fs.Uint32Var(&ctx.Height, "height", 0, "remote chain height the commitment targets")
	fs.Uint64Var(&ctx.Timestamp, "timestamp", uint64(time.Now().Unix()), "commitment timestamp")
	fs.HexVar(&metadata, "metadata", "public metadata (hex)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ctx.Metadata = metadata

	var payload []byte
	switch {
	case *input != "":
		b, err := os.ReadFile(*input)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		payload = b
	case fs.NArg() == 1:
		payload = []byte(fs.Arg(0))
	default:
		fmt.Fprintln(stderr, "Error: commit needs -in FILE or a single DATA argument")
		return 2
	}

	n, code := openNode(*configPath, stderr)
	if n == nil {
		return code
	}
	defer n.Close()

	c, err := n.Commit(ctx, payload)
	if err != nil {
		fmt.Fprintf(stderr, "Error: commit: %v\n", err)
		return 1
	}
	record, err := c.EncodeRecord()
	if err != nil {
		fmt.Fprintf(stderr, "Error: encode record: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, commitOutput{Commitment: c, Record: record})
}

func runReveal(args []string, stdout, stderr io.Writer) int {
	fs := newCustomFlagSet("reveal", stderr)
	configPath := fs.String("config", "tispark.yaml", "configuration file")
	requestPath := fs.String("request", "", "reveal request (JSON)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *requestPath == "" {
		fmt.Fprintln(stderr, "Error: reveal needs -request FILE")
		return 2
	}
	var req revealRequest
	if err := readJSON(*requestPath, &req); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	n, code := openNode(*configPath, stderr)
	if n == nil {
		return code
	}
	defer n.Close()

	plaintext, err := n.Reveal(req.CommitID, req.ConsensusProof, req.StateProof)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, revealOutput{CommitID: req.CommitID, Plaintext: plaintext})
}

func runVerifyConsensus(args []string, stdout, stderr io.Writer) int {
	fs := newCustomFlagSet("verify-consensus", stderr)
	configPath := fs.String("config", "tispark.yaml", "configuration file")
	proofPath := fs.String("proof", "", "consensus proof (JSON)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *proofPath == "" {
		fmt.Fprintln(stderr, "Error: verify-consensus needs -proof FILE")
		return 2
	}
	var cp types.ConsensusProof
	if err := readJSON(*proofPath, &cp); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	n, code := openNode(*configPath, stderr)
	if n == nil {
		return code
	}
	defer n.Close()

	cert, err := n.VerifyConsensus(&cp)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, certificateOutput{
		BlockHash: cert.BlockHash,
		Block:     cert.Block,
		StateRoot: cert.StateRoot,
		Kind:      cert.Kind.String(),
		Signers:   cert.Signers,
	})
}

// openNode loads the configuration and secret and creates a node. On
// failure it returns nil and the exit code.
func openNode(path string, stderr io.Writer) (*node.Node, int) {
	cfg, err := node.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return nil, 1
	}
	secret, err := cfg.LoadSecret()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	level, _ := log.ParseLevel(cfg.Log.Level)
	logger, err := log.NewWithOptions(log.Options{Level: level, Format: cfg.Log.Format, Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return nil, 1
	}
	log.SetDefault(logger)
	n, err := node.New(cfg, secret, node.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create node: %v\n", err)
		return nil, 1
	}
	return n, 0
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func printJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
