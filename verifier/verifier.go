// Package verifier implements the creator verification pipeline: proof
// validation, attestation fan-out, quorum evaluation, replay protection
// and the verification ledger commit.
package verifier

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/datamint/datanode/attestor"
	"github.com/datamint/datanode/db"
	"github.com/datamint/datanode/registry"
	"github.com/datamint/datanode/types"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"
)

var (
	// ErrInvalidSubject is returned when the creator parameter is not a
	// well-formed address
	ErrInvalidSubject = errors.New("invalid creator address")
	// ErrInvalidClaimHash is returned when the claimHash parameter is
	// missing, malformed, or does not match the claim content-address
	ErrInvalidClaimHash = errors.New("invalid claim hash")
	// ErrMalformedProof is returned when the zkTLS proof fails the
	// structural validation
	ErrMalformedProof = errors.New("malformed proof")
	// ErrInvalidClaim is returned when the claim payload fails the
	// bounds or creator checks
	ErrInvalidClaim = errors.New("invalid claim data")
	// ErrAlreadyVerified is returned when the creator already holds an
	// active, non-expired verification
	ErrAlreadyVerified = errors.New("creator already verified")
	// ErrInsufficientSignatures is returned when the quorum evaluation
	// counts fewer valid node signatures than required
	ErrInsufficientSignatures = errors.New("insufficient valid node signatures")
	// ErrReplayDetected is returned when the claim replay key was
	// already consumed by a previous verification
	ErrReplayDetected = errors.New("proof already used")
)

// Verifier composes the verification pipeline and owns its state
type Verifier struct {
	sqlite   *db.SQLite
	registry *registry.Registry
	client   *attestor.Client
	expiry   time.Duration
	now      func() time.Time
}

// Options is used to pass the parameters to load a new Verifier
type Options struct {
	DB       *db.SQLite
	Registry *registry.Registry
	Client   *attestor.Client
	// Expiry is the verification validity window; if zero,
	// types.DefaultExpiryDuration is used
	Expiry time.Duration
}

// New loads a new Verifier
func New(opts Options) (*Verifier, error) {
	if opts.DB == nil || opts.Registry == nil || opts.Client == nil {
		return nil, fmt.Errorf("can not create the Verifier: DB, Registry" +
			" and Client are all needed")
	}
	expiry := opts.Expiry
	if expiry == 0 {
		expiry = types.DefaultExpiryDuration
	}
	return &Verifier{
		sqlite:   opts.DB,
		registry: opts.Registry,
		client:   opts.Client,
		expiry:   expiry,
		now:      time.Now,
	}, nil
}

// VerifyCreator runs the whole verification pipeline for the given
// creator, claim and proof. On success it returns the committed
// types.VerificationRecord; on rejection it returns one of the Err*
// values of this package, wrapping the specific cause.
func (v *Verifier) VerifyCreator(ctx context.Context, creator, claimHash string,
	claim types.AgentVerificationData, proof *types.ZkProof) (
	*types.VerificationRecord, error) {
	// structural gates, before any network or crypto work
	if !common.IsHexAddress(creator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, creator)
	}
	subject := common.HexToAddress(creator)

	if !types.ValidLighthouseHash(claimHash) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClaimHash, claimHash)
	}
	if claimHash != claim.LighthouseHash {
		return nil, fmt.Errorf("%w: claimHash does not match the claim"+
			" lighthouseHash", ErrInvalidClaimHash)
	}
	if err := proof.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedProof, err)
	}
	if err := claim.Validate(subject); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidClaim, err)
	}

	// an active verification blocks re-verification until it expires or
	// is administratively cleared
	now := uint64(v.now().Unix())
	existing, err := v.sqlite.ReadVerification(subject.Hex())
	if err != nil && !errors.Is(err, db.ErrVerificationNotFound) {
		return nil, err
	}
	if existing != nil && existing.CanCreateNFT(now) {
		return nil, fmt.Errorf("%w: valid until %d", ErrAlreadyVerified,
			existing.VerificationTime+existing.ExpiryDuration)
	}

	dataHash := proof.DataHash()
	req := types.AttestationRequest{
		Creator:  subject.Hex(),
		Claim:    claim,
		DataHash: "0x" + hex.EncodeToString(dataHash),
	}

	// fan out to the trusted nodes; membership is rechecked on the
	// snapshot taken here, after the fan-out has settled
	snap := v.registry.Snapshot()
	req.RegistryRoot = hex.EncodeToString(snap.Root)
	outcomes := v.client.FanOut(ctx, snap, req)
	for _, o := range outcomes {
		if !o.Success() {
			log.Debugf("node %s attestation failed: %s", o.NodeAddress.Hex(), o.Err)
		}
	}

	digest := types.AttestationDigest(subject, claim, dataHash)
	quorum := EvaluateQuorum(v.registry.Snapshot(), digest, outcomes, snap.Threshold)
	if !quorum.Accepted {
		return nil, fmt.Errorf("%w: %d valid of %d required",
			ErrInsufficientSignatures, quorum.ValidCount, snap.Threshold)
	}

	record := &types.VerificationRecord{
		Creator:          subject.Hex(),
		IsVerified:       true,
		VerificationTime: claim.Timestamp,
		LighthouseHash:   claim.LighthouseHash,
		Data:             claim,
		ExpiryDuration:   uint64(v.expiry.Seconds()),
	}
	record.Data.Creator = subject.Hex()

	// replay-key consumption and ledger write are a single transaction
	replayKey := types.ReplayKey(subject, claim, dataHash)
	if err := v.sqlite.CommitVerification(record, replayKey); err != nil {
		if errors.Is(err, db.ErrReplayKeyConsumed) {
			return nil, fmt.Errorf("%w: key %s", ErrReplayDetected, replayKey)
		}
		return nil, err
	}

	log.Infof("creator %s verified with %d node signatures, hash %s",
		subject.Hex(), quorum.ValidCount, claim.LighthouseHash)
	return record, nil
}

// Status returns the current verification status of the given creator.
// Pure read; unknown creators yield the zero Status.
func (v *Verifier) Status(creator string) (*types.Status, error) {
	if !common.IsHexAddress(creator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, creator)
	}
	subject := common.HexToAddress(creator)

	record, err := v.sqlite.ReadVerification(subject.Hex())
	if errors.Is(err, db.ErrVerificationNotFound) {
		return &types.Status{}, nil
	} else if err != nil {
		return nil, err
	}

	now := uint64(v.now().Unix())
	return &types.Status{
		IsVerified:       record.IsVerified,
		VerificationTime: record.VerificationTime,
		IsExpired:        record.IsExpired(now),
		CanCreateNFT:     record.CanCreateNFT(now),
		TimeRemaining:    record.TimeRemaining(now),
	}, nil
}

// Clear deletes the verification record of the given creator.
// Administrative operation; the consumed replay keys are kept.
func (v *Verifier) Clear(creator string) error {
	if !common.IsHexAddress(creator) {
		return fmt.Errorf("%w: %q", ErrInvalidSubject, creator)
	}
	return v.sqlite.ClearVerification(common.HexToAddress(creator).Hex())
}
