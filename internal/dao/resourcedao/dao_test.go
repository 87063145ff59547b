package resourcedao

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPK(t *testing.T) {
	pk := NewPK("etl-pipeline", "dev")
	assert.Equal(t, "etl-pipeline/dev", pk.String())

	project, env, err := ParsePK(pk)
	require.NoError(t, err)
	assert.Equal(t, "etl-pipeline", project)
	assert.Equal(t, "dev", env)

	_, _, err = ParsePK(PK("missing-separator"))
	assert.Error(t, err)
}

func TestAddress(t *testing.T) {
	addr := NewAddress("glue-job", "etl-pipeline-etl-job-dev")
	assert.Equal(t, "glue-job/etl-pipeline-etl-job-dev", addr.String())

	kind, name, err := ParseAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, "glue-job", kind)
	assert.Equal(t, "etl-pipeline-etl-job-dev", name)

	// Names may themselves contain separators.
	kind, name, err = ParseAddress(Address("iam-policy/etl-pipeline-lambda-role-dev/inline"))
	require.NoError(t, err)
	assert.Equal(t, "iam-policy", kind)
	assert.Equal(t, "etl-pipeline-lambda-role-dev/inline", name)

	_, _, err = ParseAddress(Address("no-separator"))
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "etl-deployer-resources-dev", TableName("dev"))
	assert.Equal(t, "etl-deployer-resources-prod", TableName("prod"))
}

type Data struct {
	DAO *DAO
}

func setup(t *testing.T) (ctx context.Context, data Data, cleanup func()) {
	ctx = context.Background()

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-west-2"),
		config.WithBaseEndpoint("http://localhost:8000"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("blah", "blah", ""),
		),
	)
	assert.NoError(t, err)

	var (
		client    = dynamodb.NewFromConfig(cfg)
		db        = ddb.New(client)
		tableName = fmt.Sprintf("resources-test-%v", ksuid.New().String())
		table     = db.MustTable(tableName, Record{})
		dao       = New(client, tableName)
	)

	err = table.CreateTableIfNotExists(ctx)
	assert.NoError(t, err)

	return ctx, Data{DAO: dao}, func() {
		_ = table.DeleteTableIfExists(ctx)
	}
}

func TestDAO(t *testing.T) {
	ddbtest.WithTable[Data](t, setup, func(t *testing.T, ctx context.Context, data Data) {
		dao := data.DAO

		input := TrackInput{
			Project:    "etl-pipeline",
			Env:        "dev",
			Kind:       "glue-job",
			Name:       "etl-pipeline-etl-job-dev",
			ExternalID: "etl-pipeline-etl-job-dev",
		}
		addr := NewAddress(input.Kind, input.Name)

		t.Run("Track_Find", func(t *testing.T) {
			record, err := dao.Track(ctx, input)
			require.NoError(t, err)
			assert.Equal(t, NewPK("etl-pipeline", "dev"), record.PK)
			assert.Equal(t, addr, record.SK)
			assert.NotZero(t, record.CreatedAt)

			found, err := dao.Find(ctx, "etl-pipeline", "dev", addr)
			require.NoError(t, err)
			assert.Equal(t, input.ExternalID, found.ExternalID)
		})

		t.Run("Track_Twice_IsNoop", func(t *testing.T) {
			first, err := dao.Track(ctx, input)
			require.NoError(t, err)

			second := input
			second.ExternalID = "a-different-arn"
			record, err := dao.Track(ctx, second)
			require.NoError(t, err)

			// At most one entry per address; the original record wins.
			assert.Equal(t, first.ExternalID, record.ExternalID)

			records, err := dao.Query(ctx, "etl-pipeline", "dev")
			require.NoError(t, err)
			assert.Len(t, records, 1)
		})

		t.Run("Has", func(t *testing.T) {
			ok, err := dao.Has(ctx, "etl-pipeline", "dev", addr)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = dao.Has(ctx, "etl-pipeline", "dev", NewAddress("s3-bucket", "nope"))
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run("Query_ScopedToPartition", func(t *testing.T) {
			_, err := dao.Track(ctx, TrackInput{
				Project:    "etl-pipeline",
				Env:        "prod",
				Kind:       "glue-job",
				Name:       "etl-pipeline-etl-job-prod",
				ExternalID: "etl-pipeline-etl-job-prod",
			})
			require.NoError(t, err)

			records, err := dao.Query(ctx, "etl-pipeline", "dev")
			require.NoError(t, err)
			assert.Len(t, records, 1)
		})

		t.Run("Untrack", func(t *testing.T) {
			err := dao.Untrack(ctx, "etl-pipeline", "dev", addr)
			require.NoError(t, err)

			ok, err := dao.Has(ctx, "etl-pipeline", "dev", addr)
			require.NoError(t, err)
			assert.False(t, ok)

			// Untracking an absent address stays quiet.
			err = dao.Untrack(ctx, "etl-pipeline", "dev", addr)
			require.NoError(t, err)
		})
	})
}
