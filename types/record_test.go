package types

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRecordExpiry(t *testing.T) {
	c := qt.New(t)

	T := uint64(1700000000)
	D := uint64(2592000) // 30 days
	r := VerificationRecord{
		IsVerified:       true,
		VerificationTime: T,
		ExpiryDuration:   D,
	}

	// expiry boundary: still valid at exactly T+D, expired one second
	// later
	c.Assert(r.IsExpired(T), qt.IsFalse)
	c.Assert(r.IsExpired(T+D), qt.IsFalse)
	c.Assert(r.IsExpired(T+D+1), qt.IsTrue)

	c.Assert(r.CanCreateNFT(T+1000), qt.IsTrue)
	c.Assert(r.CanCreateNFT(T+D+1), qt.IsFalse)

	r.IsVerified = false
	c.Assert(r.CanCreateNFT(T+1000), qt.IsFalse)
}

func TestRecordTimeRemaining(t *testing.T) {
	c := qt.New(t)

	T := uint64(1700000000)
	r := VerificationRecord{
		IsVerified:       true,
		VerificationTime: T,
		ExpiryDuration:   2592000,
	}

	c.Assert(r.TimeRemaining(T), qt.Equals, "30d 0h 0m")
	c.Assert(r.TimeRemaining(T+3600), qt.Equals, "29d 23h 0m")
	c.Assert(r.TimeRemaining(T+3660), qt.Equals, "29d 22h 59m")
	c.Assert(r.TimeRemaining(T+2592000), qt.Equals, "expired")
	c.Assert(r.TimeRemaining(T+9999999), qt.Equals, "expired")
}
