package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/datamint/datanode/attestor"
	"github.com/datamint/datanode/types"
	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/log"
)

var port, dir, logLevel, keyFile string

type api struct {
	r      *gin.Engine
	signer *attestor.Signer
}

func main() {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	flag.StringVarP(&dir, "dir", "d", filepath.Join(home, ".datanode-attestor"),
		"key & files directory")
	flag.StringVarP(&logLevel, "logLevel", "l", "info", "log level (info, debug, warn, error)")
	flag.StringVarP(&port, "port", "p", "9000", "network port for the HTTP API")
	flag.StringVarP(&keyFile, "key", "k", "",
		"attestor key file (defaults to <dir>/attestor.key, generated if missing)")
	flag.CommandLine.SortFlags = false
	flag.Parse()

	log.Init(logLevel, "stdout")

	if keyFile == "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			log.Fatal(err)
		}
		keyFile = filepath.Join(dir, "attestor.key")
	}
	signer, err := attestor.LoadSigner(keyFile)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("attestor node address: %s", signer.Address().Hex())

	a := api{signer: signer}
	a.r = gin.Default()

	a.r.POST("/attest", a.postAttest)
	a.r.GET("/address", a.getAddress)

	if err = a.r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
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

func (a *api) postAttest(c *gin.Context) {
	var req types.AttestationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		returnErr(c, err)
		return
	}

	resp, err := a.signer.Attest(req)
	if err != nil {
		returnErr(c, err)
		return
	}
	log.Debugf("attested claim %s for creator %s",
		req.Claim.LighthouseHash, req.Creator)
	c.JSON(http.StatusOK, resp)
}

func (a *api) getAddress(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"nodeAddress": a.signer.Address().Hex(),
	})
}
