package types

import "github.com/ethereum/go-ethereum/common"

// AttestationRequest is the payload sent to each trusted node when
// requesting an attestation over a verification claim
type AttestationRequest struct {
	Creator      string                `json:"creator"`
	Claim        AgentVerificationData `json:"claim"`
	DataHash     string                `json:"dataHash"`
	RegistryRoot string                `json:"registryRoot"`
}

// AttestationResponse is the answer of a trusted node to an
// AttestationRequest
type AttestationResponse struct {
	NodeAddress string `json:"nodeAddress"`
	Signature   string `json:"signature"`
}

// NodeSignature contains the signature of a trusted node over the
// canonical attestation digest, together with the address the node claims
// to sign with. It is valid only if recovering the signer from the digest
// yields NodeAddress exactly.
type NodeSignature struct {
	NodeAddress common.Address
	Signature   []byte
}

// AttestationOutcome is the per-node result of an attestation fan-out.
// Either Signature is set (the node answered) or Err is set (the node was
// unreachable, timed out or returned an error).
type AttestationOutcome struct {
	NodeAddress common.Address
	Signature   []byte
	Err         error
}

// Success returns true if the outcome carries a signature payload
func (o AttestationOutcome) Success() bool {
	return o.Err == nil
}
