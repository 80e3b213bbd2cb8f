package boltstore

import (
	"context"
	"io"
	"os"

	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//
// Seed is the yaml layout of a platform snapshot used to
// populate a fresh store.
//
type Seed struct {
	Users       []platform.User                `yaml:"users"`
	Sites       []platform.Site                `yaml:"sites"`
	Assessments []platform.PublishedAssessment `yaml:"assessments"`
	Gradings    []platform.GradingRecord       `yaml:"gradings"`
}

func ReadSeed(r io.Reader) (*Seed, error) {
	seed := &Seed{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(seed); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "cannot parse seed")
	}
	return seed, nil
}

// LoadSeedFile reads the seed at path and applies it to the store
func (s *Store) LoadSeedFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "cannot open seed file")
	}
	defer f.Close()

	seed, err := ReadSeed(f)
	if err != nil {
		return err
	}
	return s.Apply(ctx, seed)
}

//
// Apply writes the seed into the store. Users whose eid already
// exists are skipped so a seed can be re-applied on every start.
//
func (s *Store) Apply(ctx context.Context, seed *Seed) error {
	for _, u := range seed.Users {
		if _, err := s.AddUser(ctx, u); err != nil && !errors.Is(err, platform.ErrAlreadyDefined) {
			return errors.Wrapf(err, "cannot seed user %s", u.Eid)
		}
	}
	for _, site := range seed.Sites {
		if err := s.PutSite(ctx, site); err != nil {
			return errors.Wrapf(err, "cannot seed site %s", site.ID)
		}
	}
	for _, a := range seed.Assessments {
		if err := s.PutAssessment(ctx, a); err != nil {
			return errors.Wrapf(err, "cannot seed assessment %d", a.ID)
		}
	}
	for _, g := range seed.Gradings {
		if _, err := s.PutGradingRecord(ctx, g); err != nil {
			return errors.Wrapf(err, "cannot seed grading record %d", g.ID)
		}
	}
	return nil
}
