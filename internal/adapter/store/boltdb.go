package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"virtualta/internal/domain"
)

// IndexFileName is the bbolt file inside every persisted index directory.
const IndexFileName = "index.db"

// CurrentSchemaVersion is the current on-disk format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")

	keySchemaVersion = []byte("schema_version")
	keyInfo          = []byte("info")
)

type storedRecord struct {
	Vector   []float32       `json:"v"`
	Content  string          `json:"c"`
	Metadata domain.Metadata `json:"m"`
}

// BoltIndexStore persists vector indexes as one bbolt file per directory.
type BoltIndexStore struct {
	openTimeout time.Duration
}

func NewBoltIndexStore() *BoltIndexStore {
	return &BoltIndexStore{openTimeout: 5 * time.Second}
}

// IndexPath returns the path of the index file inside dir.
func IndexPath(dir string) string {
	return filepath.Join(dir, IndexFileName)
}

// Save writes records to dir, replacing any index already there. The file is
// written beside the target and renamed into place, so a failed build leaves
// the previous index intact.
func (s *BoltIndexStore) Save(dir string, info domain.IndexInfo, records []domain.VectorRecord) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	target := IndexPath(dir)
	tmp := target + ".tmp"
	_ = os.Remove(tmp)

	db, err := bbolt.Open(tmp, 0600, &bbolt.Options{Timeout: s.openTimeout})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	info.SchemaVersion = CurrentSchemaVersion
	info.RecordCount = len(records)
	if info.Dimension == 0 && len(records) > 0 {
		info.Dimension = len(records[0].Embedding)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		rb, err := tx.CreateBucketIfNotExists(bucketRecords)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketRecords, err)
		}
		mb, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}

		for i, r := range records {
			data, err := json.Marshal(storedRecord{
				Vector:   r.Embedding,
				Content:  r.Chunk.Text,
				Metadata: r.Chunk.Metadata,
			})
			if err != nil {
				return err
			}
			if err := rb.Put(sequenceKey(uint64(i)), data); err != nil {
				return err
			}
		}

		version, err := json.Marshal(info.SchemaVersion)
		if err != nil {
			return err
		}
		if err := mb.Put(keySchemaVersion, version); err != nil {
			return err
		}
		infoData, err := json.Marshal(info)
		if err != nil {
			return err
		}
		return mb.Put(keyInfo, infoData)
	})
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write index: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	return nil
}

// Load reads the index stored in dir. It fails if the directory or file is
// missing rather than creating an empty index.
func (s *BoltIndexStore) Load(dir string) (domain.IndexInfo, []domain.VectorRecord, error) {
	var info domain.IndexInfo

	path := IndexPath(dir)
	if _, err := os.Stat(path); err != nil {
		return info, nil, fmt.Errorf("index not found at %s: %w", path, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: s.openTimeout})
	if err != nil {
		return info, nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	defer db.Close()

	var records []domain.VectorRecord
	err = db.View(func(tx *bbolt.Tx) error {
		var err error
		if info, err = readInfo(tx); err != nil {
			return err
		}

		rb := tx.Bucket(bucketRecords)
		if rb == nil {
			return errors.New("records bucket not found")
		}
		records = make([]domain.VectorRecord, 0, rb.Stats().KeyN)
		return rb.ForEach(func(k, v []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt record %x: %w", k, err)
			}
			records = append(records, domain.VectorRecord{
				Embedding: stored.Vector,
				Chunk: domain.Chunk{
					Text:     stored.Content,
					Metadata: stored.Metadata,
				},
			})
			return nil
		})
	})
	if err != nil {
		return info, nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	if info.RecordCount != 0 && info.RecordCount != len(records) {
		return info, nil, fmt.Errorf("index %s is truncated: expected %d records, found %d", path, info.RecordCount, len(records))
	}
	return info, records, nil
}

// Inspect returns only the metadata of the index stored in dir.
func (s *BoltIndexStore) Inspect(dir string) (domain.IndexInfo, error) {
	var info domain.IndexInfo

	path := IndexPath(dir)
	if _, err := os.Stat(path); err != nil {
		return info, fmt.Errorf("index not found at %s: %w", path, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: s.openTimeout})
	if err != nil {
		return info, fmt.Errorf("failed to open bolt db: %w", err)
	}
	defer db.Close()

	err = db.View(func(tx *bbolt.Tx) error {
		var err error
		info, err = readInfo(tx)
		return err
	})
	return info, err
}

func readInfo(tx *bbolt.Tx) (domain.IndexInfo, error) {
	var info domain.IndexInfo

	mb := tx.Bucket(bucketMeta)
	if mb == nil {
		return info, errors.New("meta bucket not found")
	}

	var version int
	if data := mb.Get(keySchemaVersion); data != nil {
		if err := json.Unmarshal(data, &version); err != nil {
			return info, fmt.Errorf("invalid schema version: %w", err)
		}
	}
	if version != CurrentSchemaVersion {
		return info, fmt.Errorf("%w: found v%d, expected v%d; rebuild the index", domain.ErrSchemaVersion, version, CurrentSchemaVersion)
	}

	if data := mb.Get(keyInfo); data != nil {
		if err := json.Unmarshal(data, &info); err != nil {
			return info, fmt.Errorf("invalid index info: %w", err)
		}
	}
	return info, nil
}

// sequenceKey encodes n big-endian so bbolt's byte ordering matches insertion order.
func sequenceKey(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}
