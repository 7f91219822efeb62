package verifier

import (
	"github.com/datamint/datanode/registry"
	"github.com/datamint/datanode/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// QuorumResult contains the outcome of a quorum evaluation
type QuorumResult struct {
	Accepted   bool
	ValidCount int
}

// EvaluateQuorum counts the valid attestations among the given outcomes
// and checks them against the required-signature threshold. For each
// successful outcome: membership of the claimed node address is rechecked
// against the given snapshot, the signer is recovered from the canonical
// digest, and the signature counts only if the recovered signer equals
// the claimed address. Two valid signatures from the same node count
// once. If required exceeds the snapshot size, acceptance is impossible
// by construction.
func EvaluateQuorum(snap *registry.Snapshot, digest []byte,
	outcomes []types.AttestationOutcome, required int) QuorumResult {
	counted := make(map[common.Address]bool)
	valid := 0
	for _, o := range outcomes {
		if !o.Success() {
			continue
		}
		if len(o.Signature) != types.SignatureLen {
			continue
		}
		if !snap.Contains(o.NodeAddress) {
			continue
		}
		pub, err := crypto.SigToPub(digest, o.Signature)
		if err != nil {
			continue
		}
		recovered := crypto.PubkeyToAddress(*pub)
		if recovered != o.NodeAddress {
			continue
		}
		if counted[recovered] {
			continue
		}
		counted[recovered] = true
		valid++
	}
	return QuorumResult{
		Accepted:   valid >= required,
		ValidCount: valid,
	}
}
