package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cuemby/snapmeta/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// bucketOf returns the bucket name for kind. Every Kind gets its own bucket
// so a full kind scan never touches another kind's rows.
func bucketOf(kind types.Kind) []byte {
	return []byte("resource_" + kind.String())
}

var bucketIDSeq = []byte("id_sequence")

// BoltStore implements Store on top of a single bbolt file: one bucket per
// resource Kind holding JSON-encoded attribute maps, plus an id_sequence
// bucket holding one counter key per kind for ID allocation.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir
// and ensures every kind's bucket and the sequence bucket exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "snapmeta.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, kind := range types.AllKinds() {
			if _, err := tx.CreateBucketIfNotExists(bucketOf(kind)); err != nil {
				return fmt.Errorf("create bucket for %s: %w", kind, err)
			}
		}
		if _, err := tx.CreateBucketIfNotExists(bucketIDSeq); err != nil {
			return fmt.Errorf("create id sequence bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func idKey(id types.ID) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func (s *BoltStore) Create(kind types.Kind, attrs AttrMap) (types.ID, error) {
	var id types.ID
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		id, err = s.nextID(tx, kind)
		if err != nil {
			return err
		}
		row := make(AttrMap, len(attrs))
		for k, v := range attrs {
			if k != "id" {
				row[k] = v
			}
		}
		return s.upsert(tx, kind, id, row)
	})
	return id, err
}

func (s *BoltStore) NextID(kind types.Kind) (types.ID, error) {
	var id types.ID
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		id, err = s.nextID(tx, kind)
		return err
	})
	return id, err
}

// nextID draws the next sequence value for kind from bucketIDSeq. bbolt's
// per-bucket NextSequence only gives one counter per bucket, so kinds share
// the sequence bucket via per-kind keys instead of per-kind buckets, each
// tracked with its own monotonically increasing counter.
func (s *BoltStore) nextID(tx *bolt.Tx, kind types.Kind) (types.ID, error) {
	b := tx.Bucket(bucketIDSeq)
	key := []byte(kind.String())
	var cur uint64
	if v := b.Get(key); v != nil {
		cur, _ = strconv.ParseUint(string(v), 10, 64)
	}
	cur++
	if err := b.Put(key, []byte(strconv.FormatUint(cur, 10))); err != nil {
		return 0, err
	}
	return types.ID(cur), nil
}

// upsert merges attrs into whatever row already exists at (kind, id), or
// writes attrs as a fresh row if none exists. This is the single write
// path for both Create/ApplyOperation (fresh rows, no prior data to merge
// against) and Update (partial overwrite of an existing row), matching
// the Store contract's "update overwrites only the listed attributes".
func (s *BoltStore) upsert(tx *bolt.Tx, kind types.Kind, id types.ID, attrs AttrMap) error {
	b := tx.Bucket(bucketOf(kind))
	merged := AttrMap{}
	if existing := b.Get(idKey(id)); existing != nil {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return fmt.Errorf("decode existing %s %d: %w", kind, id, err)
		}
	}
	for k, v := range attrs {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal %s %d: %w", kind, id, err)
	}
	return b.Put(idKey(id), data)
}

func (s *BoltStore) Update(kind types.Kind, id types.ID, attrs AttrMap) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOf(kind))
		if b.Get(idKey(id)) == nil {
			return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
		}
		return s.upsert(tx, kind, id, attrs)
	})
}

func (s *BoltStore) Get(kind types.Kind, id types.ID) (AttrMap, error) {
	var attrs AttrMap
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOf(kind))
		data := b.Get(idKey(id))
		if data == nil {
			return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
		}
		return json.Unmarshal(data, &attrs)
	})
	return attrs, err
}

func (s *BoltStore) Remove(kind types.Kind, id types.ID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOf(kind)).Delete(idKey(id))
	})
}

func (s *BoltStore) GetCollectionIDs(includeInactive bool) ([]types.ID, error) {
	var ids []types.ID
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOf(types.KindCollection))
		return b.ForEach(func(k, v []byte) error {
			id, attrs, err := decodeRow(k, v)
			if err != nil {
				return err
			}
			if includeInactive || attrs["state"] == "ACTIVE" || attrs["state"] == "PENDING" {
				ids = append(ids, id)
			}
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) GetCollectionIDByName(name string) (types.ID, error) {
	var found types.ID
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOf(types.KindCollection))
		return b.ForEach(func(k, v []byte) error {
			id, attrs, err := decodeRow(k, v)
			if err != nil {
				return err
			}
			if attrs["name"] == name {
				found = id
			}
			return nil
		})
	})
	if err == nil && found == 0 {
		return 0, fmt.Errorf("%w: collection %q", ErrNotFound, name)
	}
	return found, err
}

func (s *BoltStore) GetSnapshotIDs(collectionID types.ID, includeInactive bool) ([]types.ID, error) {
	var ids []types.ID
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOf(types.KindCollectionCommit))
		return b.ForEach(func(k, v []byte) error {
			id, attrs, err := decodeRow(k, v)
			if err != nil {
				return err
			}
			if attrs["collection_id"] != strconv.FormatInt(collectionID, 10) {
				return nil
			}
			if includeInactive || attrs["state"] == "ACTIVE" {
				ids = append(ids, id)
			}
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) GetAllActiveSnapshotIDs(rangeLowBound types.Timestamp) ([]SnapshotRef, types.Timestamp, error) {
	var refs []SnapshotRef
	var maxUpdated types.Timestamp
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOf(types.KindCollectionCommit))
		return b.ForEach(func(k, v []byte) error {
			id, attrs, err := decodeRow(k, v)
			if err != nil {
				return err
			}
			if attrs["state"] != "ACTIVE" {
				return nil
			}
			updated, _ := strconv.ParseUint(attrs["updated_on"], 10, 64)
			if updated <= rangeLowBound {
				return nil
			}
			collectionID, err := strconv.ParseInt(attrs["collection_id"], 10, 64)
			if err != nil {
				return fmt.Errorf("decode collection_id for commit %d: %w", id, err)
			}
			refs = append(refs, SnapshotRef{CollectionID: collectionID, CommitID: id})
			if updated > maxUpdated {
				maxUpdated = updated
			}
			return nil
		})
	})
	return refs, maxUpdated, err
}

func (s *BoltStore) GetInactiveResources() ([]ResourceRef, error) {
	var refs []ResourceRef
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, kind := range types.AllKinds() {
			b := tx.Bucket(bucketOf(kind))
			err := b.ForEach(func(k, v []byte) error {
				id, attrs, err := decodeRow(k, v)
				if err != nil {
					return err
				}
				if attrs["state"] == "DEACTIVE" {
					refs = append(refs, ResourceRef{Kind: kind, ID: id})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return refs, err
}

// ApplyOperation persists the whole batch inside a single bbolt
// transaction: either every write lands or none do. This is strictly
// stronger than the Store contract requires (see the interface doc on
// partial persistence) but bbolt's transaction model makes it free to
// provide, so BoltStore always does.
func (s *BoltStore) ApplyOperation(batch []OperationWrite) ([]types.ID, error) {
	ids := make([]types.ID, len(batch))
	err := s.db.Update(func(tx *bolt.Tx) error {
		for i, w := range batch {
			if w.ID == 0 {
				id, err := s.nextID(tx, w.Kind)
				if err != nil {
					return err
				}
				if err := s.upsert(tx, w.Kind, id, w.Attrs); err != nil {
					return err
				}
				ids[i] = id
				continue
			}
			if err := s.upsert(tx, w.Kind, w.ID, w.Attrs); err != nil {
				return err
			}
			ids[i] = w.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func decodeRow(k, v []byte) (types.ID, AttrMap, error) {
	id, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("decode row key %q: %w", k, err)
	}
	var attrs AttrMap
	if err := json.Unmarshal(v, &attrs); err != nil {
		return 0, nil, fmt.Errorf("decode row %d: %w", id, err)
	}
	return id, attrs, nil
}
