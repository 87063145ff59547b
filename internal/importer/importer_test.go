package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
	apperrors "github.com/meridian-data/etl-deployer/internal/errors"
)

// memStore is an in-memory StateStore.
type memStore struct {
	tracked  map[resourcedao.Address]bool
	trackErr error
}

func newMemStore() *memStore {
	return &memStore{tracked: make(map[resourcedao.Address]bool)}
}

func (m *memStore) Has(_ context.Context, addr resourcedao.Address) (bool, error) {
	return m.tracked[addr], nil
}

func (m *memStore) Track(_ context.Context, c Candidate) error {
	if m.trackErr != nil {
		return m.trackErr
	}
	m.tracked[c.Address()] = true
	return nil
}

// mapLookup answers existence from a fixed map; unknown addresses error.
type mapLookup struct {
	exists map[resourcedao.Address]bool
	errors map[resourcedao.Address]error
}

func (m mapLookup) Exists(_ context.Context, c Candidate) (bool, error) {
	if err := m.errors[c.Address()]; err != nil {
		return false, err
	}
	return m.exists[c.Address()], nil
}

func candidates() []Candidate {
	role := Candidate{Kind: "iam-role", Name: "etl-pipeline-lambda-role-dev", ExternalID: "arn:aws:iam::123:role/etl-pipeline-lambda-role-dev"}
	return []Candidate{
		{Kind: "s3-bucket", Name: "etl-pipeline-source-dev", ExternalID: "etl-pipeline-source-dev"},
		role,
		{Kind: "lambda-function", Name: "etl-pipeline-trigger-dev", ExternalID: "etl-pipeline-trigger-dev", Parent: role.Address()},
	}
}

func allExist(cands []Candidate) map[resourcedao.Address]bool {
	exists := make(map[resourcedao.Address]bool)
	for _, c := range cands {
		exists[c.Address()] = true
	}
	return exists
}

func TestRun_ImportsEverythingPresent(t *testing.T) {
	cands := candidates()
	store := newMemStore()
	imp := New(store, mapLookup{exists: allExist(cands)})

	summary, err := imp.Run(context.Background(), cands)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Imported)
	assert.Zero(t, summary.Failed)
	for _, c := range cands {
		assert.True(t, store.tracked[c.Address()], "expected %s tracked", c.Address())
	}
}

func TestRun_SecondRunSkipsEverything(t *testing.T) {
	cands := candidates()
	store := newMemStore()
	imp := New(store, mapLookup{exists: allExist(cands)})

	_, err := imp.Run(context.Background(), cands)
	require.NoError(t, err)

	summary, err := imp.Run(context.Background(), cands)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Skipped)
	assert.Zero(t, summary.Imported)
}

func TestRun_AbsentIsNotFailure(t *testing.T) {
	cands := candidates()
	// Nothing exists remotely: the expected first-deployment case.
	imp := New(newMemStore(), mapLookup{exists: nil})

	summary, err := imp.Run(context.Background(), cands)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Absent)  // bucket and role
	assert.Equal(t, 1, summary.Blocked) // function, its role is untracked
	assert.Zero(t, summary.Failed)
}

func TestRun_ParentBlocksChild(t *testing.T) {
	cands := candidates()
	exists := allExist(cands)
	// The role is gone remotely, so it comes back absent and stays untracked.
	delete(exists, resourcedao.NewAddress("iam-role", "etl-pipeline-lambda-role-dev"))

	imp := New(newMemStore(), mapLookup{exists: exists})
	summary, err := imp.Run(context.Background(), cands)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Imported) // the bucket
	assert.Equal(t, 1, summary.Absent)   // the role
	assert.Equal(t, 1, summary.Blocked)  // the function, parent untracked

	last := summary.Results[len(summary.Results)-1]
	assert.Equal(t, OutcomeBlocked, last.Outcome)
	assert.ErrorIs(t, last.Err, apperrors.ErrParentNotTracked)
}

func TestRun_FailureContinuesAndSurfaces(t *testing.T) {
	cands := candidates()
	exists := allExist(cands)
	lookupErrs := map[resourcedao.Address]error{
		resourcedao.NewAddress("s3-bucket", "etl-pipeline-source-dev"): errors.New("AccessDenied"),
	}

	store := newMemStore()
	imp := New(store, mapLookup{exists: exists, errors: lookupErrs})

	summary, err := imp.Run(context.Background(), cands)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 resources failed")

	// The failure did not abort the rest of the run.
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Imported)
	assert.Len(t, summary.Results, 3)
}

func TestRun_TrackWriteFailureIsFailed(t *testing.T) {
	cands := candidates()
	store := newMemStore()
	store.trackErr = errors.New("ProvisionedThroughputExceededException")

	imp := New(store, mapLookup{exists: allExist(cands)})
	summary, err := imp.Run(context.Background(), cands)

	require.Error(t, err)
	assert.Equal(t, 2, summary.Failed) // bucket and role writes fail
	assert.Equal(t, 1, summary.Blocked)
}

func TestRun_EmptyCandidateList(t *testing.T) {
	imp := New(newMemStore(), mapLookup{})
	summary, err := imp.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, summary.Results)
}
