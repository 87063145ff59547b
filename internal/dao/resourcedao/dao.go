// Package resourcedao persists Managed Resource Descriptors: one record per
// cloud resource the deployer tracks, keyed by the resource's logical address.
package resourcedao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
)

// PK represents a DynamoDB partition key in format {project}/{env}
// Example: etl-pipeline/dev
type PK string

// NewPK creates a new partition key from project and env
func NewPK(project, env string) PK {
	return PK(fmt.Sprintf("%s/%s", project, env))
}

// ParsePK parses a partition key into its project and env components
func ParsePK(pk PK) (project, env string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {project}/{env}", s)
	}
	return parts[0], parts[1], nil
}

// String returns the string representation of the partition key
func (pk PK) String() string {
	return string(pk)
}

// Address is the logical address of a managed resource in format {kind}/{name}
// Example: glue-job/etl-pipeline-etl-job-dev
type Address string

// NewAddress creates an Address from kind and name
func NewAddress(kind, name string) Address {
	return Address(fmt.Sprintf("%s/%s", kind, name))
}

// ParseAddress parses an Address into kind and name components
func ParseAddress(addr Address) (kind, name string, err error) {
	s := string(addr)
	idx := strings.Index(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", fmt.Errorf("invalid address format: %s, expected {kind}/{name}", s)
	}
	return s[:idx], s[idx+1:], nil
}

func (a Address) String() string {
	return string(a)
}

// Record represents a Managed Resource Descriptor in DynamoDB
type Record struct {
	PK         PK      `ddb:"hash" dynamodbav:"pk"`  // {project}/{env} - DynamoDB partition key
	SK         Address `ddb:"range" dynamodbav:"sk"` // {kind}/{name} - logical address
	Kind       string  `dynamodbav:"kind,omitempty"`
	Name       string  `dynamodbav:"name,omitempty"`
	ExternalID string  `dynamodbav:"external_id,omitempty"` // ARN or service-native name
	CreatedAt  int64   `dynamodbav:"created_at,omitempty"`  // Unix epoch timestamp of creation
	UpdatedAt  int64   `dynamodbav:"updated_at,omitempty"`  // Unix epoch timestamp of last update
}

// TrackInput contains the fields needed to track a resource
type TrackInput struct {
	Project    string
	Env        string
	Kind       string
	Name       string
	ExternalID string
}

// TableName derives the tracked-state table name from the environment
func TableName(env string) string {
	return fmt.Sprintf("etl-deployer-resources-%s", env)
}

// DAO provides data access operations for Managed Resource Descriptors
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Track records a resource descriptor. Tracking an address that is already
// present is a no-op success: at most one entry exists per logical address.
func (d *DAO) Track(ctx context.Context, input TrackInput) (Record, error) {
	pk := NewPK(input.Project, input.Env)
	addr := NewAddress(input.Kind, input.Name)
	now := time.Now().Unix()

	if existing, ok, err := d.find(ctx, pk, addr); err != nil {
		return Record{}, err
	} else if ok {
		return existing, nil
	}

	record := Record{
		PK:         pk,
		SK:         addr,
		Kind:       input.Kind,
		Name:       input.Name,
		ExternalID: input.ExternalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := d.table.Put(&record).RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to track resource %s: %w", addr, err)
	}

	return record, nil
}

// Has reports whether the logical address is present in tracked state
func (d *DAO) Has(ctx context.Context, project, env string, addr Address) (bool, error) {
	_, ok, err := d.find(ctx, NewPK(project, env), addr)
	return ok, err
}

// Find retrieves a descriptor by logical address.
// Returns an error if not found or if there's a database error.
func (d *DAO) Find(ctx context.Context, project, env string, addr Address) (Record, error) {
	record, ok, err := d.find(ctx, NewPK(project, env), addr)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("resource not tracked: %s", addr)
	}
	return record, nil
}

// Untrack removes a descriptor by logical address
func (d *DAO) Untrack(ctx context.Context, project, env string, addr Address) error {
	err := d.table.Delete(NewPK(project, env)).
		Range(addr.String()).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to untrack resource %s: %w", addr, err)
	}
	return nil
}

// Query returns all descriptors for a given project/env partition key
func (d *DAO) Query(ctx context.Context, project, env string) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", NewPK(project, env).String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked resources: %w", err)
	}

	return records, nil
}

func (d *DAO) find(ctx context.Context, pk PK, addr Address) (Record, bool, error) {
	var record Record

	err := d.table.Get(pk.String()).
		Range(addr.String()).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to find resource %s: %w", addr, err)
	}

	// If all fields are empty, item doesn't exist
	if record.PK == "" && record.SK == "" {
		return Record{}, false, nil
	}

	return record, true, nil
}
