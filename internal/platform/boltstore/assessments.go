package boltstore

import (
	"context"
	"encoding/json"

	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// GradingRecords lists the records of one user in one site, in record id order
func (s *Store) GradingRecords(ctx context.Context, agentID, siteID string) ([]platform.GradingRecord, error) {
	records := []platform.GradingRecord{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketGradings).ForEach(func(k, v []byte) error {
			r := platform.GradingRecord{}
			if err := json.Unmarshal(v, &r); err != nil {
				return errors.Wrap(err, "cannot decode grading record")
			}
			if r.AgentID == agentID && r.SiteID == siteID {
				records = append(records, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// basic info only, sections are loaded through SectionSet
func (s *Store) PublishedAssessment(ctx context.Context, id int64) (*platform.PublishedAssessment, error) {
	a, err := s.assessment(id)
	if err != nil {
		return nil, err
	}
	a.Sections = nil
	return a, nil
}

func (s *Store) SectionSet(ctx context.Context, assessmentID int64) ([]platform.Section, error) {
	a, err := s.assessment(assessmentID)
	if err != nil {
		return nil, err
	}
	return a.Sections, nil
}

func (s *Store) assessment(id int64) (*platform.PublishedAssessment, error) {
	a := &platform.PublishedAssessment{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx, bucketAssessments, itob(id), a)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "published assessment %d", id)
	}
	return a, nil
}

func (s *Store) PutAssessment(ctx context.Context, a platform.PublishedAssessment) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketAssessments, itob(a.ID), a)
	})
}

//
// PutGradingRecord stores a record, a zero id is replaced with
// the next bucket sequence.
//
func (s *Store) PutGradingRecord(ctx context.Context, r platform.GradingRecord) (int64, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketGradings)
		if r.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			r.ID = int64(seq)
		} else if uint64(r.ID) > b.Sequence() {
			if err := b.SetSequence(uint64(r.ID)); err != nil {
				return err
			}
		}
		return put(tx, bucketGradings, itob(r.ID), r)
	})
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}
