package attestor

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/datamint/datanode/registry"
	"github.com/datamint/datanode/test"
	"github.com/datamint/datanode/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

func testRequest(creator common.Address) types.AttestationRequest {
	claim := test.SampleClaim(creator, 1700000000)
	proof := test.SampleProof(creator, 1700000000)
	return types.AttestationRequest{
		Creator:  creator.Hex(),
		Claim:    claim,
		DataHash: "0x" + hex.EncodeToString(proof.DataHash()),
	}
}

func TestSignClaim(t *testing.T) {
	c := qt.New(t)

	keys := test.GenNodeKeys(c, 1)
	srv := test.NewAttestorServer(keys.PrivateKeys[0])
	defer srv.Close()

	creator := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	node := registry.Node{Address: keys.Addresses[0], URL: srv.URL}

	client := NewClient(time.Second)
	nodeSig, err := client.SignClaim(context.Background(), node, testRequest(creator))
	c.Assert(err, qt.IsNil)
	c.Assert(nodeSig.NodeAddress, qt.Equals, keys.Addresses[0])
	c.Assert(len(nodeSig.Signature), qt.Equals, types.SignatureLen)
	c.Assert(srv.Calls(), qt.Equals, 1)
}

func TestSignClaimNodeError(t *testing.T) {
	c := qt.New(t)

	srv := test.NewFailingServer()
	defer srv.Close()

	creator := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	node := registry.Node{URL: srv.URL}

	client := NewClient(time.Second)
	_, err := client.SignClaim(context.Background(), node, testRequest(creator))
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(err.Error(), qt.Equals, "attestor unavailable")
}

func TestFanOutSettled(t *testing.T) {
	c := qt.New(t)

	keys := test.GenNodeKeys(c, 2)
	healthy0 := test.NewAttestorServer(keys.PrivateKeys[0])
	defer healthy0.Close()
	healthy1 := test.NewAttestorServer(keys.PrivateKeys[1])
	defer healthy1.Close()
	failing := test.NewFailingServer()
	defer failing.Close()
	hanging := test.NewHangingServer(500 * time.Millisecond)
	defer hanging.Close()

	var failingAddr, hangingAddr common.Address
	failingAddr[19] = 0xfa
	hangingAddr[19] = 0xfb

	nodes := []registry.Node{
		{Address: keys.Addresses[0], URL: healthy0.URL},
		{Address: keys.Addresses[1], URL: healthy1.URL},
		{Address: failingAddr, URL: failing.URL},
		{Address: hangingAddr, URL: hanging.URL},
	}
	reg := test.NewRegistry(c, 2, nodes)

	creator := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	// the per-request timeout turns the hanging node into a failed
	// outcome without aborting the others
	client := NewClient(100 * time.Millisecond)
	outcomes := client.FanOut(context.Background(), reg.Snapshot(), testRequest(creator))
	c.Assert(len(outcomes), qt.Equals, 4)
	c.Assert(outcomes[0].Success(), qt.IsTrue)
	c.Assert(outcomes[1].Success(), qt.IsTrue)
	c.Assert(outcomes[2].Success(), qt.IsFalse)
	c.Assert(outcomes[3].Success(), qt.IsFalse)
	c.Assert(outcomes[0].NodeAddress, qt.Equals, keys.Addresses[0])
	c.Assert(outcomes[2].NodeAddress, qt.Equals, failingAddr)
}

func TestSignerAttest(t *testing.T) {
	c := qt.New(t)

	keys := test.GenNodeKeys(c, 1)
	signer := NewSigner(keys.PrivateKeys[0])
	creator := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	req := testRequest(creator)
	resp, err := signer.Attest(req)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.NodeAddress, qt.Equals, keys.Addresses[0].Hex())

	// the returned signature recovers to the signer address over the
	// canonical digest
	sig, err := hex.DecodeString(resp.Signature)
	c.Assert(err, qt.IsNil)
	dataHash, err := hex.DecodeString(req.DataHash[2:])
	c.Assert(err, qt.IsNil)
	digest := types.AttestationDigest(creator, req.Claim, dataHash)
	pub, err := crypto.SigToPub(digest, sig)
	c.Assert(err, qt.IsNil)
	c.Assert(crypto.PubkeyToAddress(*pub), qt.Equals, keys.Addresses[0])

	// an attestor never signs a malformed claim
	bad := testRequest(creator)
	bad.Claim.Accuracy = 10001
	_, err = signer.Attest(bad)
	c.Assert(err, qt.Not(qt.IsNil))

	bad = testRequest(creator)
	bad.Claim.Creator = "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
	_, err = signer.Attest(bad)
	c.Assert(err, qt.Not(qt.IsNil))

	bad = testRequest(creator)
	bad.DataHash = "0x1234"
	_, err = signer.Attest(bad)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestLoadSigner(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(c.TempDir(), "attestor.key")

	// a missing key file is generated
	s1, err := LoadSigner(path)
	c.Assert(err, qt.IsNil)

	// loading again reuses the stored key
	s2, err := LoadSigner(path)
	c.Assert(err, qt.IsNil)
	c.Assert(s2.Address(), qt.Equals, s1.Address())
}
