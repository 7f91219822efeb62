// Package attestor implements the client used to request attestations
// from the trusted nodes, and the signer the attestor daemon answers
// with.
package attestor

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/datamint/datanode/registry"
	"github.com/datamint/datanode/types"
	"github.com/ethereum/go-ethereum/common"
)

// Client implements the attestor http client, used to request the trusted
// nodes to attest verification claims
type Client struct {
	c *http.Client
}

// NewClient returns a new Client. timeout bounds each individual node
// request; zero means no per-request timeout (the caller context still
// applies).
func NewClient(timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		c: httpClient,
	}
}

type errorMsg struct {
	Message string `json:"message"`
}

// SignClaim requests the node at the given URL to attest the given claim,
// returning the signature payload the node answered with. The claimed
// node address is taken from the response; the quorum evaluation is the
// place where it is checked against the signature and the trusted set.
func (c *Client) SignClaim(ctx context.Context, node registry.Node,
	req types.AttestationRequest) (*types.NodeSignature, error) {
	jsonReq, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		node.URL+"/attest", bytes.NewBuffer(jsonReq))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.c.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var errMsg errorMsg
		if err = json.Unmarshal(body, &errMsg); err != nil {
			return nil, fmt.Errorf("node returned status %d", resp.StatusCode)
		}
		return nil, errors.New(errMsg.Message)
	}

	var attResp types.AttestationResponse
	if err = json.Unmarshal(body, &attResp); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(attResp.NodeAddress) {
		return nil, fmt.Errorf("node answered with an invalid address: %q",
			attResp.NodeAddress)
	}
	sig, err := hex.DecodeString(attResp.Signature)
	if err != nil {
		return nil, fmt.Errorf("node answered with a non-hex signature: %s", err)
	}
	if len(sig) != types.SignatureLen {
		return nil, fmt.Errorf("node answered with a signature of %d bytes,"+
			" expected %d", len(sig), types.SignatureLen)
	}

	return &types.NodeSignature{
		NodeAddress: common.HexToAddress(attResp.NodeAddress),
		Signature:   sig,
	}, nil
}

// FanOut requests an attestation to every trusted node of the given
// snapshot. All the requests are issued concurrently and FanOut returns
// once every one of them has settled; a per-node failure yields a failed
// outcome for that node only and does not abort the others.
func (c *Client) FanOut(ctx context.Context, snap *registry.Snapshot,
	req types.AttestationRequest) []types.AttestationOutcome {
	outcomes := make([]types.AttestationOutcome, snap.Size())

	var wg sync.WaitGroup
	for i, node := range snap.Nodes {
		wg.Add(1)
		go func(i int, node registry.Node) {
			defer wg.Done()
			nodeSig, err := c.SignClaim(ctx, node, req)
			if err != nil {
				outcomes[i] = types.AttestationOutcome{
					NodeAddress: node.Address,
					Err:         err,
				}
				return
			}
			outcomes[i] = types.AttestationOutcome{
				NodeAddress: nodeSig.NodeAddress,
				Signature:   nodeSig.Signature,
			}
		}(i, node)
	}
	wg.Wait()

	return outcomes
}
