package boltstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nuid"
	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

func (s *Store) UserByEid(ctx context.Context, eid string) (*platform.User, error) {
	u := &platform.User{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketEids).Get([]byte(strings.ToLower(eid)))
		if id == nil {
			return errors.Wrapf(platform.ErrNotFound, "user eid %s", eid)
		}
		return get(tx, bucketUsers, id, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

//
// AddUser provisions a new account. An empty id is replaced by a
// generated one, the eid must not be in use.
//
func (s *Store) AddUser(ctx context.Context, u platform.User) (*platform.User, error) {
	if strings.TrimSpace(u.Eid) == "" {
		return nil, errors.New("user eid is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	u.Created, u.Modified = now, now

	err := s.db.Update(func(tx *bbolt.Tx) error {
		eids := tx.Bucket(bucketEids)
		key := []byte(strings.ToLower(u.Eid))
		if eids.Get(key) != nil {
			return errors.Wrapf(platform.ErrAlreadyDefined, "user eid %s", u.Eid)
		}
		if tx.Bucket(bucketUsers).Get([]byte(u.ID)) != nil {
			return errors.Wrapf(platform.ErrAlreadyDefined, "user id %s", u.ID)
		}
		if err := eids.Put(key, []byte(u.ID)); err != nil {
			return err
		}
		return put(tx, bucketUsers, []byte(u.ID), u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) EditUser(ctx context.Context, id string) (*platform.UserEdit, error) {
	edit := &platform.UserEdit{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx, bucketUsers, []byte(id), &edit.User)
	})
	if err != nil {
		return nil, err
	}
	return edit, nil
}

func (s *Store) CommitEdit(ctx context.Context, edit *platform.UserEdit) error {
	if edit == nil {
		return errors.New("nil user edit")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		stored := platform.User{}
		if err := get(tx, bucketUsers, []byte(edit.ID), &stored); err != nil {
			return err
		}
		// eid changes must not collide with another account
		if !strings.EqualFold(stored.Eid, edit.Eid) {
			eids := tx.Bucket(bucketEids)
			key := []byte(strings.ToLower(edit.Eid))
			if eids.Get(key) != nil {
				return errors.Wrapf(platform.ErrAlreadyDefined, "user eid %s", edit.Eid)
			}
			if err := eids.Delete([]byte(strings.ToLower(stored.Eid))); err != nil {
				return err
			}
			if err := eids.Put(key, []byte(edit.ID)); err != nil {
				return err
			}
		}
		u := edit.User
		u.Created = stored.Created
		u.Modified = s.now()
		return put(tx, bucketUsers, []byte(u.ID), u)
	})
}

func (s *Store) StartSession(ctx context.Context, userID string) (*platform.Session, error) {
	sess := &platform.Session{
		ID:      uuid.NewString(),
		UserID:  userID,
		Started: s.now(),
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsers).Get([]byte(userID)) == nil {
			return errors.Wrapf(platform.ErrNotFound, "user id %s", userID)
		}
		return put(tx, bucketSessions, []byte(sess.ID), sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Session resolves a previously started session.
// Inspection helper, not part of the platform interfaces; tests use it.
func (s *Store) Session(ctx context.Context, id string) (*platform.Session, error) {
	sess := &platform.Session{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx, bucketSessions, []byte(id), sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

type usageEvent struct {
	UserID string `json:"userId"`
	Eid    string `json:"eid"`
	IP     string `json:"ip"`
	Tool   string `json:"tool"`
	Event  string `json:"event"`
	At     string `json:"at"`
}

func (s *Store) Login(ctx context.Context, userID, eid, ip, tool, event string) error {
	ev := usageEvent{
		UserID: userID,
		Eid:    eid,
		IP:     ip,
		Tool:   tool,
		Event:  event,
		At:     s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucketEvents, []byte(nuid.Next()), ev)
	})
}

// LoginCount is the number of usage events recorded for a user.
// Inspection helper, not part of the platform interfaces; tests use it.
func (s *Store) LoginCount(ctx context.Context, userID string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			ev := usageEvent{}
			if err := json.Unmarshal(v, &ev); err != nil {
				return errors.Wrapf(err, "cannot decode event %s", k)
			}
			if ev.UserID == userID {
				n++
			}
			return nil
		})
	})
	return n, err
}

// CountUsers reports the number of accounts in the directory.
// Inspection helper, not part of the platform interfaces; tests use it.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketUsers).Stats().KeyN
		return nil
	})
	return n, err
}
