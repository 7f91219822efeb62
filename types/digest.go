package types

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// AttestationDigest returns the canonical keccak256 digest over the
// subject and the claim fields that the trusted nodes sign. Both the node
// and the attestors compute it independently; a signature only counts if
// it recovers over this exact digest.
func AttestationDigest(subject common.Address, claim AgentVerificationData,
	dataHash []byte) []byte {
	return crypto.Keccak256(
		subject.Bytes(),
		[]byte(claim.LighthouseHash),
		uint64ToBytes(claim.DatasetSize),
		uint64ToBytes(claim.TrainingEpochs),
		uint64ToBytes(claim.Accuracy),
		[]byte(claim.ModelType),
		uint64ToBytes(claim.Timestamp),
		dataHash,
	)
}

// ReplayKey returns the deterministic key that identifies a verification
// claim in the consumed-keys set. A byte-identical resubmission of the
// same claim derives the same key; a legitimate new verification carries
// a new timestamp, hence a new key.
func ReplayKey(subject common.Address, claim AgentVerificationData,
	dataHash []byte) string {
	h := crypto.Keccak256(
		subject.Bytes(),
		[]byte(claim.LighthouseHash),
		uint64ToBytes(claim.DatasetSize),
		uint64ToBytes(claim.TrainingEpochs),
		uint64ToBytes(claim.Accuracy),
		uint64ToBytes(claim.Timestamp),
		dataHash,
	)
	return hex.EncodeToString(h)
}
