package attestor

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/datamint/datanode/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the secp256k1 key an attestor node signs claims with
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner returns a Signer for the given key
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// LoadSigner reads the hex-encoded private key stored at the given path.
// If the file does not exist, a new key is generated and stored there.
func LoadSigner(path string) (*Signer, error) {
	b, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		keyHex := hex.EncodeToString(crypto.FromECDSA(key))
		if err := ioutil.WriteFile(path, []byte(keyHex), 0600); err != nil {
			return nil, err
		}
		return NewSigner(key), nil
	} else if err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

// Address returns the address derived from the Signer key
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Attest validates the given claim and, if it holds, signs its canonical
// digest. An attestor never signs a claim it considers malformed.
func (s *Signer) Attest(req types.AttestationRequest) (*types.AttestationResponse, error) {
	if !common.IsHexAddress(req.Creator) {
		return nil, fmt.Errorf("creator %q is not a valid address", req.Creator)
	}
	creator := common.HexToAddress(req.Creator)

	if err := req.Claim.Validate(creator); err != nil {
		return nil, err
	}

	dataHash, err := hex.DecodeString(strings.TrimPrefix(req.DataHash, "0x"))
	if err != nil {
		return nil, fmt.Errorf("dataHash is not hex: %s", err)
	}
	if len(dataHash) != 32 {
		return nil, fmt.Errorf("dataHash is %d bytes, expected 32", len(dataHash))
	}

	digest := types.AttestationDigest(creator, req.Claim, dataHash)
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, err
	}

	return &types.AttestationResponse{
		NodeAddress: s.Address().Hex(),
		Signature:   hex.EncodeToString(sig),
	}, nil
}
