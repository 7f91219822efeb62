package types

import (
	"fmt"
	"time"
)

// VerificationRecord is the ledger entry holding the current verification
// state of a creator. It is created or fully replaced by a successful
// quorum verification, never partially updated. Expiry is a derived
// predicate computed lazily on read; the record is not deleted when the
// window elapses.
type VerificationRecord struct {
	Creator          string                `json:"creator"`
	IsVerified       bool                  `json:"isVerified"`
	VerificationTime uint64                `json:"verificationTime"`
	LighthouseHash   string                `json:"lighthouseHash"`
	Data             AgentVerificationData `json:"data"`
	ExpiryDuration   uint64                `json:"expiryDuration"`
	InsertedDatetime time.Time             `json:"-"`
}

// IsExpired returns true if the record verification window has elapsed at
// the given unix time
func (r *VerificationRecord) IsExpired(now uint64) bool {
	return now > r.VerificationTime+r.ExpiryDuration
}

// CanCreateNFT returns true if the record allows minting at the given
// unix time
func (r *VerificationRecord) CanCreateNFT(now uint64) bool {
	return r.IsVerified && !r.IsExpired(now)
}

// TimeRemaining returns a human-readable days/hours/minutes decomposition
// of the time left until expiry, or "expired" when none is left
func (r *VerificationRecord) TimeRemaining(now uint64) string {
	end := r.VerificationTime + r.ExpiryDuration
	if end <= now {
		return "expired"
	}
	remaining := time.Duration(end-now) * time.Second
	days := int(remaining.Hours()) / 24
	hours := int(remaining.Hours()) % 24
	minutes := int(remaining.Minutes()) % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

// Status is the answer to a verification-status query. For an unknown
// creator all the fields are zero.
type Status struct {
	IsVerified       bool   `json:"isVerified"`
	VerificationTime uint64 `json:"verificationTime"`
	IsExpired        bool   `json:"isExpired"`
	CanCreateNFT     bool   `json:"canCreateNFT"`
	TimeRemaining    string `json:"timeRemaining"`
}
