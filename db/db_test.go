package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/datamint/datanode/types"
	qt "github.com/frankban/quicktest"
	_ "github.com/mattn/go-sqlite3"
)

func newTestSQLite(c *qt.C) *SQLite {
	database, err := sql.Open("sqlite3", filepath.Join(c.TempDir(), "testdb.sqlite3"))
	c.Assert(err, qt.IsNil)

	sqlite := NewSQLite(database)
	err = sqlite.Migrate()
	c.Assert(err, qt.IsNil)
	return sqlite
}

func testRecord(creator string, timestamp uint64) *types.VerificationRecord {
	return &types.VerificationRecord{
		Creator:          creator,
		IsVerified:       true,
		VerificationTime: timestamp,
		LighthouseHash:   "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy",
		Data: types.AgentVerificationData{
			LighthouseHash: "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy",
			DatasetSize:    5000,
			TrainingEpochs: 50,
			Accuracy:       9000,
			ModelType:      "transformer",
			Creator:        creator,
			Timestamp:      timestamp,
		},
		ExpiryDuration: 2592000,
	}
}

func TestCommitAndReadVerification(t *testing.T) {
	c := qt.New(t)
	sqlite := newTestSQLite(c)

	creator := "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	// reading a creator that was never verified
	_, err := sqlite.ReadVerification(creator)
	c.Assert(err, qt.Equals, ErrVerificationNotFound)

	record := testRecord(creator, 1700000000)
	err = sqlite.CommitVerification(record, "key1")
	c.Assert(err, qt.IsNil)

	stored, err := sqlite.ReadVerification(creator)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Creator, qt.Equals, creator)
	c.Assert(stored.IsVerified, qt.IsTrue)
	c.Assert(stored.VerificationTime, qt.Equals, uint64(1700000000))
	c.Assert(stored.LighthouseHash, qt.Equals, record.LighthouseHash)
	c.Assert(stored.Data, qt.DeepEquals, record.Data)
	c.Assert(stored.ExpiryDuration, qt.Equals, uint64(2592000))

	consumed, err := sqlite.IsReplayKeyConsumed("key1")
	c.Assert(err, qt.IsNil)
	c.Assert(consumed, qt.IsTrue)
}

func TestCommitVerificationReplay(t *testing.T) {
	c := qt.New(t)
	sqlite := newTestSQLite(c)

	creator := "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	err := sqlite.CommitVerification(testRecord(creator, 1700000000), "key1")
	c.Assert(err, qt.IsNil)

	// the same replay key can not be consumed twice, and the failed
	// commit must not touch the ledger
	newer := testRecord(creator, 1700009999)
	err = sqlite.CommitVerification(newer, "key1")
	c.Assert(err, qt.Equals, ErrReplayKeyConsumed)

	stored, err := sqlite.ReadVerification(creator)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.VerificationTime, qt.Equals, uint64(1700000000))

	// a new key fully supersedes the previous record
	err = sqlite.CommitVerification(newer, "key2")
	c.Assert(err, qt.IsNil)
	stored, err = sqlite.ReadVerification(creator)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.VerificationTime, qt.Equals, uint64(1700009999))

	count, err := sqlite.CountReplayKeysByCreator(creator)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 2)
}

func TestClearVerification(t *testing.T) {
	c := qt.New(t)
	sqlite := newTestSQLite(c)

	creator := "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	err := sqlite.ClearVerification(creator)
	c.Assert(err, qt.Equals, ErrVerificationNotFound)

	err = sqlite.CommitVerification(testRecord(creator, 1700000000), "key1")
	c.Assert(err, qt.IsNil)

	err = sqlite.ClearVerification(creator)
	c.Assert(err, qt.IsNil)

	_, err = sqlite.ReadVerification(creator)
	c.Assert(err, qt.Equals, ErrVerificationNotFound)

	// clearing keeps the consumed replay keys
	consumed, err := sqlite.IsReplayKeyConsumed("key1")
	c.Assert(err, qt.IsNil)
	c.Assert(consumed, qt.IsTrue)
}
