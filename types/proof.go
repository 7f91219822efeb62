package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ProofClaimData contains the claim fields of a zkTLS proof, as produced
// by the external attestor network that generated the proof
type ProofClaimData struct {
	Provider       string `json:"provider"`
	Parameters     string `json:"parameters"`
	Owner          string `json:"owner"`
	TimestampS     uint64 `json:"timestampS"`
	Context        string `json:"context"`
	ContextAddress string `json:"contextAddress"`
	ContextMessage string `json:"contextMessage"`
	Epoch          uint64 `json:"epoch"`
}

// ProofSignature is one of the signatures carried inside a zkTLS proof
type ProofSignature struct {
	Signature  string `json:"signature"`
	Identifier string `json:"identifier"`
}

// Witness identifies one of the witnesses that participated in the zkTLS
// session
type Witness struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ZkProof is the externally supplied zkTLS proof that accompanies a
// creator verification request. It is never persisted; the node only
// checks it structurally and derives the claim data hash from it.
type ZkProof struct {
	Identifier string           `json:"identifier"`
	ClaimData  ProofClaimData   `json:"claimData"`
	Signatures []ProofSignature `json:"signatures"`
	Witnesses  []Witness        `json:"witnesses"`
}

// Validate checks the structure of the proof, without performing any
// network nor cryptographic operation. Any missing or empty required
// field makes the proof invalid.
func (p *ZkProof) Validate() error {
	if p == nil {
		return fmt.Errorf("proof not provided")
	}
	if p.Identifier == "" {
		return fmt.Errorf("proof identifier is empty")
	}
	if p.ClaimData.Provider == "" {
		return fmt.Errorf("proof claimData.provider is empty")
	}
	if p.ClaimData.Owner == "" {
		return fmt.Errorf("proof claimData.owner is empty")
	}
	if !common.IsHexAddress(p.ClaimData.Owner) {
		return fmt.Errorf("proof claimData.owner is not a valid address")
	}
	if p.ClaimData.TimestampS == 0 {
		return fmt.Errorf("proof claimData.timestampS is not set")
	}
	if len(p.Signatures) == 0 {
		return fmt.Errorf("proof contains no signatures")
	}
	if len(p.Witnesses) == 0 {
		return fmt.Errorf("proof contains no witnesses")
	}
	return nil
}

// DataHash returns the keccak256 hash of the proof claim contents. It
// binds the verification claim (and its replay key) to the concrete
// zkTLS session the proof was generated from.
func (p *ZkProof) DataHash() []byte {
	return crypto.Keccak256(
		[]byte(p.ClaimData.Provider),
		[]byte(p.ClaimData.Parameters),
		[]byte(p.ClaimData.Owner),
		[]byte(p.ClaimData.Context),
		uint64ToBytes(p.ClaimData.TimestampS),
		uint64ToBytes(p.ClaimData.Epoch),
	)
}
