package db

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/datamint/datanode/types"
)

var (
	// ErrVerificationNotFound is returned when reading a creator that
	// has no verification record stored
	ErrVerificationNotFound = errors.New("verification record does not exist in the db")
	// ErrReplayKeyConsumed is returned when trying to commit a
	// verification whose replay key was already consumed
	ErrReplayKeyConsumed = errors.New("replay key already consumed")
)

// CommitVerification consumes the given replay key and stores the given
// record, fully replacing any previous record of the same creator. Both
// writes happen in a single transaction: a crash or a failed write can
// not leave a consumed key without its committed record.
func (r *SQLite) CommitVerification(record *types.VerificationRecord,
	replayKey string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	sqlConsume := `
	INSERT INTO replaykeys(
		key,
		creator,
		consumedDatetime
	) values(?, ?, CURRENT_TIMESTAMP)
	`
	_, err = tx.Exec(sqlConsume, replayKey, record.Creator)
	if err != nil {
		_ = tx.Rollback()
		if strings.Contains(err.Error(), "UNIQUE constraint failed: replaykeys.key") {
			return ErrReplayKeyConsumed
		}
		return err
	}

	sqlWrite := `
	INSERT OR REPLACE INTO verifications(
		creator,
		isVerified,
		verificationTime,
		lighthouseHash,
		datasetSize,
		trainingEpochs,
		accuracy,
		modelType,
		dataTimestamp,
		expiryDuration,
		insertedDatetime
	) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	_, err = tx.Exec(sqlWrite, record.Creator, record.IsVerified,
		record.VerificationTime, record.LighthouseHash,
		record.Data.DatasetSize, record.Data.TrainingEpochs,
		record.Data.Accuracy, record.Data.ModelType, record.Data.Timestamp,
		record.ExpiryDuration)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// ReadVerification reads the stored types.VerificationRecord for the
// given creator
func (r *SQLite) ReadVerification(creator string) (*types.VerificationRecord, error) {
	row := r.db.QueryRow("SELECT * FROM verifications WHERE creator = ?", creator)

	var record types.VerificationRecord
	err := row.Scan(&record.Creator, &record.IsVerified,
		&record.VerificationTime, &record.LighthouseHash,
		&record.Data.DatasetSize, &record.Data.TrainingEpochs,
		&record.Data.Accuracy, &record.Data.ModelType,
		&record.Data.Timestamp, &record.ExpiryDuration,
		&record.InsertedDatetime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	record.Data.LighthouseHash = record.LighthouseHash
	record.Data.Creator = record.Creator
	return &record, nil
}

// ClearVerification deletes the verification record of the given creator.
// Administrative operation; the consumed replay keys are kept, so a
// cleared creator can not resubmit an old proof.
func (r *SQLite) ClearVerification(creator string) error {
	res, err := r.db.Exec("DELETE FROM verifications WHERE creator = ?", creator)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVerificationNotFound
	}
	return nil
}

// IsReplayKeyConsumed returns true if the given replay key is already
// present in the consumed-keys set
func (r *SQLite) IsReplayKeyConsumed(key string) (bool, error) {
	row := r.db.QueryRow("SELECT COUNT(*) FROM replaykeys WHERE key = ?", key)

	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountReplayKeysByCreator returns the number of replay keys ever
// consumed for the given creator
func (r *SQLite) CountReplayKeysByCreator(creator string) (int, error) {
	row := r.db.QueryRow("SELECT COUNT(*) FROM replaykeys WHERE creator = ?", creator)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
