package api

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/datamint/datanode/registry"
	"github.com/datamint/datanode/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.vocdoni.io/dvote/log"
)

// API allows external requests to the node
type API struct {
	r   *gin.Engine
	v   *verifier.Verifier
	reg *registry.Registry
}

// New returns a new API with the endpoints, without starting to listen
func New(v *verifier.Verifier, reg *registry.Registry) (*API, error) {
	if v == nil || reg == nil {
		return nil, fmt.Errorf("can not create the API: both the Verifier" +
			" and the Registry are needed")
	}

	a := API{v: v, reg: reg}

	r := gin.Default()

	r.POST("/verify/:creator", a.postVerifyCreator)
	r.GET("/verify/:creator", a.getVerificationStatus)

	r.GET("/nodes", a.getNodes)
	r.POST("/nodes", a.postAddNode)
	r.DELETE("/nodes/:address", a.deleteNode)
	r.PUT("/threshold", a.putThreshold)
	r.DELETE("/verifications/:creator", a.deleteVerification)

	a.r = r

	return &a, nil
}

// Serve serves the API at the given port
func (a *API) Serve(port string) error {
	return a.r.Run(":" + port)
}

type errorMsg struct {
	Message string `json:"message"`
}

func returnErr(c *gin.Context, err error) {
	log.Warnw("HTTP API Bad request error", "err", err)
	c.JSON(http.StatusBadRequest, errorMsg{
		Message: err.Error(),
	})
}

// rejectionStatus maps each verification rejection class to its status
// code: policy conflicts to 409, proof and input defects to 400, and
// anything else (persistence failures included) to 500
func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, verifier.ErrAlreadyVerified),
		errors.Is(err, verifier.ErrReplayDetected):
		return http.StatusConflict
	case errors.Is(err, verifier.ErrInvalidSubject),
		errors.Is(err, verifier.ErrInvalidClaimHash),
		errors.Is(err, verifier.ErrMalformedProof),
		errors.Is(err, verifier.ErrInvalidClaim),
		errors.Is(err, verifier.ErrInsufficientSignatures):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) postVerifyCreator(c *gin.Context) {
	creator := c.Param("creator")

	var d verifyCreatorReq
	if err := c.ShouldBindJSON(&d); err != nil {
		returnErr(c, err)
		return
	}

	record, err := a.v.VerifyCreator(c.Request.Context(), creator,
		d.ClaimHash, d.Claim, &d.Proof)
	if err != nil {
		log.Warnw("verification rejected", "creator", creator, "err", err)
		c.JSON(rejectionStatus(err), verifyCreatorResp{
			Accepted: false,
			Message:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, verifyCreatorResp{
		Accepted: true,
		Record:   record,
	})
}

func (a *API) getVerificationStatus(c *gin.Context) {
	status, err := a.v.Status(c.Param("creator"))
	if err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *API) getNodes(c *gin.Context) {
	snap := a.reg.Snapshot()
	resp := nodesResp{
		Version:   snap.Version,
		Root:      hex.EncodeToString(snap.Root),
		Threshold: snap.Threshold,
		Nodes:     []nodeInfo{},
	}
	for _, n := range snap.Nodes {
		resp.Nodes = append(resp.Nodes, nodeInfo{
			Address: n.Address.Hex(),
			URL:     n.URL,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) postAddNode(c *gin.Context) {
	var d addNodeReq
	if err := c.ShouldBindJSON(&d); err != nil {
		returnErr(c, err)
		return
	}
	if !common.IsHexAddress(d.Address) {
		returnErr(c, fmt.Errorf("invalid node address: %q", d.Address))
		return
	}

	snap, err := a.reg.AddNode(registry.Node{
		Address: common.HexToAddress(d.Address),
		URL:     d.URL,
	})
	if err != nil {
		returnErr(c, err)
		return
	}
	log.Infof("trusted node %s added, registry version %d", d.Address, snap.Version)
	c.JSON(http.StatusOK, hex.EncodeToString(snap.Root))
}

func (a *API) deleteNode(c *gin.Context) {
	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		returnErr(c, fmt.Errorf("invalid node address: %q", addr))
		return
	}

	snap, err := a.reg.RemoveNode(common.HexToAddress(addr))
	if err != nil {
		returnErr(c, err)
		return
	}
	log.Infof("trusted node %s removed, registry version %d", addr, snap.Version)
	c.JSON(http.StatusOK, hex.EncodeToString(snap.Root))
}

func (a *API) putThreshold(c *gin.Context) {
	var d setThresholdReq
	if err := c.ShouldBindJSON(&d); err != nil {
		returnErr(c, err)
		return
	}

	snap, err := a.reg.SetThreshold(d.Required)
	if err != nil {
		returnErr(c, err)
		return
	}
	log.Infof("required signatures set to %d, registry version %d",
		d.Required, snap.Version)
	c.JSON(http.StatusOK, d.Required)
}

func (a *API) deleteVerification(c *gin.Context) {
	creator := c.Param("creator")
	if err := a.v.Clear(creator); err != nil {
		returnErr(c, err)
		return
	}
	log.Infof("verification record of %s cleared", creator)
	c.JSON(http.StatusOK, gin.H{"cleared": creator})
}
