package blobstore

import (
	"crypto/sha256"
	"encoding/hex"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// Content-addressed blob storage for the relay's encrypted result payloads.
// The pointer of a blob is the hex-encoded sha256 of its content, so
// publishing is idempotent and a fetched blob can be checked against its
// pointer.

var ErrNotFound = xerrors.New("no blob under this pointer")

var bucketName = []byte("blobs")

type Store struct {
	db *bbolt.DB
}

func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("couldn't open store: %v", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("couldn't create bucket: %v", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Publish(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	ptr := hex.EncodeToString(sum[:])
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(sum[:], data)
	})
	if err != nil {
		return "", xerrors.Errorf("couldn't store blob: %v", err)
	}
	return ptr, nil
}

func (s *Store) Fetch(ptr string) ([]byte, error) {
	key, err := hex.DecodeString(ptr)
	if err != nil {
		return nil, xerrors.Errorf("bad pointer: %v", err)
	}
	var data []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return ErrNotFound
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
