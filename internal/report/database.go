package report

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/transparentcare/billcheck/internal/dispute"
)

const (
	reportBucketName = "reports"
	letterBucketName = "letters"
)

// DB defines the interface for database operations
type DB interface {
	// SaveReport saves a report to the database
	SaveReport(rep *BillReport) error

	// GetReport retrieves a report by ID
	GetReport(id string) (*BillReport, error)

	// ListReports returns all reports
	ListReports() ([]*BillReport, error)

	// DeleteReport removes a report from the database
	DeleteReport(id string) error

	// SaveLetter saves a generated letter keyed by report ID
	SaveLetter(reportID string, letter *dispute.Letter) error

	// GetLetter retrieves the letter for a report
	GetLetter(reportID string) (*dispute.Letter, error)

	// DeleteLetter removes the letter for a report
	DeleteLetter(reportID string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(reportBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(letterBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReport saves a report to the database
func (b *BoltDB) SaveReport(rep *BillReport) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		data, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return bucket.Put([]byte(rep.ID), data)
	})
}

// GetReport retrieves a report by ID
func (b *BoltDB) GetReport(id string) (*BillReport, error) {
	var rep *BillReport
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("report not found: %s", id)
		}
		return json.Unmarshal(data, &rep)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// ListReports returns all reports
func (b *BoltDB) ListReports() ([]*BillReport, error) {
	reports := make([]*BillReport, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var rep BillReport
			if err := json.Unmarshal(v, &rep); err != nil {
				return fmt.Errorf("unmarshaling report: %w", err)
			}
			reports = append(reports, &rep)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// DeleteReport removes a report from the database
func (b *BoltDB) DeleteReport(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveLetter saves a generated letter keyed by report ID
func (b *BoltDB) SaveLetter(reportID string, letter *dispute.Letter) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(letterBucketName))
		data, err := json.Marshal(letter)
		if err != nil {
			return fmt.Errorf("marshaling letter: %w", err)
		}
		return bucket.Put([]byte(reportID), data)
	})
}

// GetLetter retrieves the letter for a report
func (b *BoltDB) GetLetter(reportID string) (*dispute.Letter, error) {
	var letter *dispute.Letter
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(letterBucketName))
		data := bucket.Get([]byte(reportID))
		if data == nil {
			return fmt.Errorf("letter not found for report: %s", reportID)
		}
		return json.Unmarshal(data, &letter)
	})
	if err != nil {
		return nil, err
	}
	return letter, nil
}

// DeleteLetter removes the letter for a report
func (b *BoltDB) DeleteLetter(reportID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(letterBucketName))
		return bucket.Delete([]byte(reportID))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
