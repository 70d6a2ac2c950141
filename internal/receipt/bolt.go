package receipt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"
)

var (
	receiptsBucket = []byte("receipts")
	paycheckBucket = []byte("paycheck")
	budgetBucket   = []byte("budget")

	allBuckets = [][]byte{receiptsBucket, paycheckBucket, budgetBucket}
)

// singletonRecord is the stored form of the paycheck and budget rows
type singletonRecord struct {
	ID     int             `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// BoltStore implements the Store interface using BoltDB.
// Receipts are keyed by the bucket sequence, big-endian, so keys sort by ID.
type BoltStore struct {
	db         *bbolt.DB
	timeSource TimeSource
}

// NewBoltStore opens the BoltDB file at path and creates its buckets
func NewBoltStore(path string) (*BoltStore, error) {
	return NewBoltStoreWithDeps(path, &defaultTimeSource{})
}

// NewBoltStoreWithDeps creates a BoltStore with a custom time source for testing
func NewBoltStoreWithDeps(path string, timeSrc TimeSource) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	b := &BoltStore{db: db, timeSource: timeSrc}
	if err := b.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// itob encodes an ID as an 8-byte big-endian key
func itob(v uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, v)
	return key
}

func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, name)
	}
	return b, nil
}

// Initialize creates the receipts, paycheck and budget buckets if they don't exist
func (b *BoltStore) Initialize() error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating buckets: %w", err)
	}
	return nil
}

// InsertReceipt saves a new receipt under the next bucket sequence number
func (b *BoltStore) InsertReceipt(n NewReceipt) (*Receipt, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	var receipt *Receipt
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := bucket(tx, receiptsBucket)
		if err != nil {
			return err
		}
		id, err := bkt.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating receipt id: %w", err)
		}
		receipt = n.receipt(int64(id), today(b.timeSource))

		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bkt.Put(itob(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, recurring ones last, newest first within each group
func (b *BoltStore) ListReceipts() ([]*Receipt, error) {
	receipts, err := b.scanReceipts(func(*Receipt) bool { return true })
	if err != nil {
		return nil, err
	}

	sort.SliceStable(receipts, func(i, j int) bool {
		a, c := receipts[i], receipts[j]
		if a.IsRecurring != c.IsRecurring {
			return !a.IsRecurring
		}
		if a.DateScanned != c.DateScanned {
			return a.DateScanned.After(c.DateScanned)
		}
		return a.ID > c.ID
	})
	return receipts, nil
}

// ListReceiptsSince returns receipts dated on or after cutoff, in ID order
func (b *BoltStore) ListReceiptsSince(cutoff civil.Date) ([]*Receipt, error) {
	return b.scanReceipts(func(r *Receipt) bool {
		return !r.DateScanned.Before(cutoff)
	})
}

func (b *BoltStore) scanReceipts(keep func(*Receipt) bool) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bkt, err := bucket(tx, receiptsBucket)
		if err != nil {
			return err
		}
		return bkt.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			if keep(&receipt) {
				receipts = append(receipts, &receipt)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetPaycheck returns the paycheck amount, zero when none was saved
func (b *BoltStore) GetPaycheck() (decimal.Decimal, error) {
	return b.getSingleton(paycheckBucket)
}

// SetPaycheck overwrites the paycheck amount
func (b *BoltStore) SetPaycheck(amount decimal.Decimal) error {
	return b.setSingleton(paycheckBucket, amount)
}

// GetBudget returns the budget amount, zero when none was saved
func (b *BoltStore) GetBudget() (decimal.Decimal, error) {
	return b.getSingleton(budgetBucket)
}

// SetBudget overwrites the budget amount
func (b *BoltStore) SetBudget(amount decimal.Decimal) error {
	return b.setSingleton(budgetBucket, amount)
}

func (b *BoltStore) getSingleton(name []byte) (decimal.Decimal, error) {
	var record singletonRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bkt, err := bucket(tx, name)
		if err != nil {
			return err
		}
		data := bkt.Get(itob(singletonID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading %s: %w", name, err)
	}
	return record.Amount, nil
}

func (b *BoltStore) setSingleton(name []byte, amount decimal.Decimal) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := bucket(tx, name)
		if err != nil {
			return err
		}
		data, err := json.Marshal(singletonRecord{ID: singletonID, Amount: amount})
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", name, err)
		}
		return bkt.Put(itob(singletonID), data)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// DropReceipts deletes the receipts bucket
func (b *BoltStore) DropReceipts() error {
	return b.dropBucket(receiptsBucket)
}

// DropPaycheck deletes the paycheck bucket
func (b *BoltStore) DropPaycheck() error {
	return b.dropBucket(paycheckBucket)
}

// DropBudget deletes the budget bucket
func (b *BoltStore) DropBudget() error {
	return b.dropBucket(budgetBucket)
}

func (b *BoltStore) dropBucket(name []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket(name)
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("dropping %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
