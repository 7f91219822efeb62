package api

import "github.com/datamint/datanode/types"

type verifyCreatorReq struct {
	ClaimHash string                      `json:"claimHash"`
	Claim     types.AgentVerificationData `json:"claim"`
	Proof     types.ZkProof               `json:"proof"`
}

type verifyCreatorResp struct {
	Accepted bool                      `json:"accepted"`
	Record   *types.VerificationRecord `json:"record,omitempty"`
	Message  string                    `json:"message,omitempty"`
}

type addNodeReq struct {
	Address string `json:"address"`
	URL     string `json:"url"`
}

type setThresholdReq struct {
	Required int `json:"required"`
}

type nodesResp struct {
	Version   uint64     `json:"version"`
	Root      string     `json:"root"`
	Threshold int        `json:"threshold"`
	Nodes     []nodeInfo `json:"nodes"`
}

type nodeInfo struct {
	Address string `json:"address"`
	URL     string `json:"url"`
}
