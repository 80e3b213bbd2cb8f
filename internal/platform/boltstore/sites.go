package boltstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

//
// Site resolves a site by its id, falling back to the
// alias table when no site carries that id.
//
func (s *Store) Site(ctx context.Context, id string) (*platform.Site, error) {
	site := &platform.Site{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := []byte(id)
		if tx.Bucket(bucketSites).Get(key) == nil {
			if target := tx.Bucket(bucketAliases).Get(key); target != nil {
				key = target
			}
		}
		return get(tx, bucketSites, key, site)
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

func (s *Store) Sites(ctx context.Context, siteType string) ([]platform.Site, error) {
	sites := []platform.Site{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSites).ForEach(func(k, v []byte) error {
			site := platform.Site{}
			if err := json.Unmarshal(v, &site); err != nil {
				return errors.Wrapf(err, "cannot decode site %s", k)
			}
			if site.IsUserSite() {
				return nil
			}
			if siteType != "" && site.Type != siteType {
				return nil
			}
			sites = append(sites, site)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sites, nil
}

// PutSite stores a site and registers its aliases
func (s *Store) PutSite(ctx context.Context, site platform.Site) error {
	if site.ID == "" {
		return errors.New("site id is required")
	}
	sort.SliceStable(site.Pages, func(i, j int) bool {
		return site.Pages[i].Position < site.Pages[j].Position
	})
	if site.Created.IsZero() {
		site.Created = s.now()
	}
	if site.Modified.IsZero() {
		site.Modified = site.Created
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		aliases := tx.Bucket(bucketAliases)
		for _, a := range site.Aliases {
			if err := aliases.Put([]byte(a), []byte(site.ID)); err != nil {
				return err
			}
		}
		return put(tx, bucketSites, []byte(site.ID), site)
	})
}

func (s *Store) AddUserToSite(ctx context.Context, userID string, siteID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsers).Get([]byte(userID)) == nil {
			return errors.Wrapf(platform.ErrNotFound, "user id %s", userID)
		}
		site := platform.Site{}
		if err := get(tx, bucketSites, []byte(siteID), &site); err != nil {
			return err
		}
		for _, m := range site.Members {
			if m == userID {
				return nil
			}
		}
		site.Members = append(site.Members, userID)
		site.Modified = s.now()
		return put(tx, bucketSites, []byte(site.ID), site)
	})
}

func (s *Store) PinnedSites(ctx context.Context, userID string) ([]string, error) {
	pins := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketPins).Get([]byte(userID))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &pins)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read pinned sites of %s", userID)
	}
	return pins, nil
}

func (s *Store) AddPinnedSite(ctx context.Context, userID, siteID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPins)
		pins := []string{}
		if v := b.Get([]byte(userID)); v != nil {
			if err := json.Unmarshal(v, &pins); err != nil {
				return errors.Wrapf(err, "cannot decode pinned sites of %s", userID)
			}
		}
		for _, p := range pins {
			if p == siteID {
				return nil
			}
		}
		return put(tx, bucketPins, []byte(userID), append(pins, siteID))
	})
}
