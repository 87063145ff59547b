package importer

import (
	"context"

	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
)

// DAOStore adapts the resourcedao DAO to the importer's StateStore interface
// for a fixed project/env partition.
type DAOStore struct {
	dao     *resourcedao.DAO
	project string
	env     string
}

func NewDAOStore(dao *resourcedao.DAO, project, env string) *DAOStore {
	return &DAOStore{
		dao:     dao,
		project: project,
		env:     env,
	}
}

func (s *DAOStore) Has(ctx context.Context, addr resourcedao.Address) (bool, error) {
	return s.dao.Has(ctx, s.project, s.env, addr)
}

func (s *DAOStore) Track(ctx context.Context, c Candidate) error {
	_, err := s.dao.Track(ctx, resourcedao.TrackInput{
		Project:    s.project,
		Env:        s.env,
		Kind:       c.Kind,
		Name:       c.Name,
		ExternalID: c.ExternalID,
	})
	return err
}
