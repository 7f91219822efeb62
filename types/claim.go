package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AgentVerificationData is the claim payload about an AI dataset that the
// trusted nodes attest to. Accuracy is expressed in basis points
// (0..10000), Timestamp in unix seconds.
type AgentVerificationData struct {
	LighthouseHash string `json:"lighthouseHash"`
	DatasetSize    uint64 `json:"datasetSize"`
	TrainingEpochs uint64 `json:"trainingEpochs"`
	Accuracy       uint64 `json:"accuracy"`
	ModelType      string `json:"modelType"`
	Creator        string `json:"creator"`
	Timestamp      uint64 `json:"timestamp"`
}

// ValidLighthouseHash returns true if the given string has the shape of a
// Lighthouse content-address
func ValidLighthouseHash(h string) bool {
	return strings.HasPrefix(h, LighthouseHashPrefix) &&
		len(h) > len(LighthouseHashPrefix)
}

// Validate checks the claim bounds and that the claim creator matches the
// given subject address
func (d *AgentVerificationData) Validate(subject common.Address) error {
	if !ValidLighthouseHash(d.LighthouseHash) {
		return fmt.Errorf("claim lighthouseHash %q does not match the"+
			" expected content-address format", d.LighthouseHash)
	}
	if d.DatasetSize == 0 {
		return fmt.Errorf("claim datasetSize must be positive")
	}
	if d.TrainingEpochs == 0 {
		return fmt.Errorf("claim trainingEpochs must be positive")
	}
	if d.Accuracy > MaxAccuracy {
		return fmt.Errorf("claim accuracy %d out of range [0, %d]",
			d.Accuracy, MaxAccuracy)
	}
	if d.ModelType == "" {
		return fmt.Errorf("claim modelType is empty")
	}
	if !common.IsHexAddress(d.Creator) {
		return fmt.Errorf("claim creator %q is not a valid address", d.Creator)
	}
	if common.HexToAddress(d.Creator) != subject {
		return fmt.Errorf("claim creator %s does not match the subject %s",
			d.Creator, subject.Hex())
	}
	if d.Timestamp == 0 {
		return fmt.Errorf("claim timestamp is not set")
	}
	return nil
}
