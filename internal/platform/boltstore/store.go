//
// Package boltstore keeps the platform collaborators in a single
// bbolt file so the portal can run standalone or against a
// seeded copy of platform data.
//
package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	bucketUsers       = []byte("Users")
	bucketEids        = []byte("Eids")
	bucketSessions    = []byte("Sessions")
	bucketEvents      = []byte("Events")
	bucketSites       = []byte("Sites")
	bucketAliases     = []byte("Aliases")
	bucketPins        = []byte("Pins")
	bucketAssessments = []byte("Assessments")
	bucketGradings    = []byte("Gradings")
)

var allBuckets = [][]byte{
	bucketUsers,
	bucketEids,
	bucketSessions,
	bucketEvents,
	bucketSites,
	bucketAliases,
	bucketPins,
	bucketAssessments,
	bucketGradings,
}

//
// Store implements every platform service interface on top
// of one bbolt database.
//
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var (
	_ platform.UserDirectory     = (*Store)(nil)
	_ platform.SessionManager    = (*Store)(nil)
	_ platform.UsageLog          = (*Store)(nil)
	_ platform.SiteService       = (*Store)(nil)
	_ platform.PortalService     = (*Store)(nil)
	_ platform.AssessmentService = (*Store)(nil)
)

// Open opens (or creates) the store at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "cannot create store directory")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open store %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot create store buckets")
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func put(tx *bbolt.Tx, bucket, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "cannot encode %s entry", bucket)
	}
	return tx.Bucket(bucket).Put(key, data)
}

func get(tx *bbolt.Tx, bucket, key []byte, out interface{}) error {
	v := tx.Bucket(bucket).Get(key)
	if v == nil {
		return errors.Wrapf(platform.ErrNotFound, "%s: %s", bucket, key)
	}
	if err := json.Unmarshal(v, out); err != nil {
		return errors.Wrapf(err, "cannot decode %s entry %s", bucket, key)
	}
	return nil
}

// numeric keys sort in id order
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
