package types

import "time"

const (
	// DefaultRequiredSignatures is the number of valid node attestations
	// needed to accept a verification when no other threshold is
	// configured.
	DefaultRequiredSignatures = 3

	// DefaultExpiryDuration is the window during which a committed
	// verification stays valid and allows NFT creation.
	DefaultExpiryDuration = 30 * 24 * time.Hour

	// LighthouseHashPrefix is the prefix carried by every content-address
	// returned by the Lighthouse storage layer (CIDv1)
	LighthouseHashPrefix = "baf"

	// MaxAccuracy is the upper bound of the claimed model accuracy, in
	// basis points (10000 = 100.00%)
	MaxAccuracy = 10000

	// MaxLevels indicates the number of levels of the trusted-node
	// registry MerkleTree
	MaxLevels = 64

	// SignatureLen is the length in bytes of a node attestation
	// signature ([R || S || V] over the secp256k1 curve)
	SignatureLen = 65
)
