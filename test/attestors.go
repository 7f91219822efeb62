// Package test provides the helpers shared by the tests of the node
// packages: deterministic attestor keys, fake attestor servers and sample
// claims.
package test

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/datamint/datanode/registry"
	"github.com/datamint/datanode/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	kvdb "go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/pebbledb"
)

// Keys contains the test attestor PrivateKeys and their Addresses
type Keys struct {
	PrivateKeys []*ecdsa.PrivateKey
	Addresses   []common.Address
}

// GenNodeKeys returns n attestor keypairs
func GenNodeKeys(c *qt.C, n int) Keys {
	var keys Keys
	for i := 0; i < n; i++ {
		sk, err := crypto.GenerateKey()
		c.Assert(err, qt.IsNil)
		keys.PrivateKeys = append(keys.PrivateKeys, sk)
		keys.Addresses = append(keys.Addresses, crypto.PubkeyToAddress(sk.PublicKey))
	}
	return keys
}

// AttestorServer is a fake attestor node backed by an httptest.Server. It
// counts the attestation requests it receives.
type AttestorServer struct {
	*httptest.Server
	calls int32
}

// Calls returns the number of attestation requests the server received
func (s *AttestorServer) Calls() int {
	return int(atomic.LoadInt32(&s.calls))
}

// attestHandler signs the incoming claim digest with key and reports the
// given address, without validating the claim (tests control the input)
func (s *AttestorServer) attestHandler(key *ecdsa.PrivateKey,
	claimed common.Address) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.calls, 1)

		var req types.AttestationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		dataHash, err := hex.DecodeString(strings.TrimPrefix(req.DataHash, "0x"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		digest := types.AttestationDigest(common.HexToAddress(req.Creator),
			req.Claim, dataHash)
		sig, err := crypto.Sign(digest, key)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := types.AttestationResponse{
			NodeAddress: claimed.Hex(),
			Signature:   hex.EncodeToString(sig),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// NewAttestorServer returns a fake attestor node that signs with the
// given key and reports its own derived address
func NewAttestorServer(key *ecdsa.PrivateKey) *AttestorServer {
	return NewAttestorServerWithAddress(key, crypto.PubkeyToAddress(key.PublicKey))
}

// NewAttestorServerWithAddress returns a fake attestor node that signs
// with the given key but reports the given address. With a claimed
// address different from the key, it produces signatures that never
// recover to the address they claim.
func NewAttestorServerWithAddress(key *ecdsa.PrivateKey,
	claimed common.Address) *AttestorServer {
	s := &AttestorServer{}
	s.Server = httptest.NewServer(s.attestHandler(key, claimed))
	return s
}

// NewFailingServer returns a fake attestor node that answers every
// attestation request with an error
func NewFailingServer() *AttestorServer {
	s := &AttestorServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&s.calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message": "attestor unavailable"}`))
		}))
	return s
}

// NewHangingServer returns a fake attestor node that sleeps for the given
// duration before answering, to trigger client timeouts
func NewHangingServer(d time.Duration) *AttestorServer {
	s := &AttestorServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&s.calls, 1)
			time.Sleep(d)
			w.WriteHeader(http.StatusInternalServerError)
		}))
	return s
}

// NewRegistry returns a registry.Registry in a temporary directory,
// loaded with the given nodes and threshold
func NewRegistry(c *qt.C, threshold int, nodes []registry.Node) *registry.Registry {
	opts := kvdb.Options{Path: c.TempDir()}
	database, err := pebbledb.New(opts)
	c.Assert(err, qt.IsNil)

	reg, err := registry.Load(database, c.TempDir(), threshold)
	c.Assert(err, qt.IsNil)
	for _, n := range nodes {
		_, err = reg.AddNode(n)
		c.Assert(err, qt.IsNil)
	}
	return reg
}

// SampleClaim returns a valid claim for the given creator and timestamp
func SampleClaim(creator common.Address, timestamp uint64) types.AgentVerificationData {
	return types.AgentVerificationData{
		LighthouseHash: "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy",
		DatasetSize:    5000,
		TrainingEpochs: 50,
		Accuracy:       9000,
		ModelType:      "transformer",
		Creator:        creator.Hex(),
		Timestamp:      timestamp,
	}
}

// SampleProof returns a structurally valid ZkProof owned by the given
// creator
func SampleProof(creator common.Address, timestamp uint64) types.ZkProof {
	return types.ZkProof{
		Identifier: "0x1f6fc293d9e4cb26b6e85f0fdf1d00f0b4de4b02bc7c8e6be0e76e7cd5a4c233",
		ClaimData: types.ProofClaimData{
			Provider:       "http",
			Parameters:     `{"url":"https://huggingface.co/api/datasets"}`,
			Owner:          creator.Hex(),
			TimestampS:     timestamp,
			Context:        `{"extractedParameters":{"datasets":"1"}}`,
			ContextAddress: creator.Hex(),
			ContextMessage: "dataset provenance",
			Epoch:          1,
		},
		Signatures: []types.ProofSignature{
			{Signature: "0xaa11", Identifier: "0x01"},
		},
		Witnesses: []types.Witness{
			{ID: "0x244897572368eadf65bfbc5aec98d8e5443a9072", URL: "wss://witness.reclaimprotocol.org/ws"},
		},
	}
}
