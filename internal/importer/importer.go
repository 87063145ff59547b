// Package importer reconciles already-existing cloud resources into the
// deployer's tracked state. It is used when a pipeline was provisioned by
// hand (or by an earlier tool) and the tracked-state table needs to catch up.
package importer

import (
	"context"
	"fmt"

	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
	apperrors "github.com/meridian-data/etl-deployer/internal/errors"
	"github.com/rs/zerolog"
)

// Outcome classifies the result of one import attempt.
type Outcome string

const (
	// OutcomeImported means the resource exists remotely and is now tracked.
	OutcomeImported Outcome = "imported"

	// OutcomeSkipped means the address was already present in tracked state.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeAbsent means the remote lookup found nothing. This is the
	// expected case for first-time deployments and is not a failure.
	OutcomeAbsent Outcome = "absent"

	// OutcomeBlocked means the candidate's parent is not in tracked state,
	// so the import was not attempted. Non-fatal.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeFailed means the remote lookup or the tracking write failed
	// unexpectedly. Failures are counted and surfaced at the end.
	OutcomeFailed Outcome = "failed"
)

// Candidate is one (logical address, externally known identifier) pair to import.
type Candidate struct {
	Kind       string
	Name       string
	ExternalID string

	// Parent, when set, is the logical address of a resource that must be
	// present in tracked state before this candidate is attempted. A
	// role-scoped policy cannot be imported until its role is tracked.
	Parent resourcedao.Address
}

// Address returns the candidate's logical address.
func (c Candidate) Address() resourcedao.Address {
	return resourcedao.NewAddress(c.Kind, c.Name)
}

// StateStore is the tracked-state backend the importer mutates.
type StateStore interface {
	Has(ctx context.Context, addr resourcedao.Address) (bool, error)
	Track(ctx context.Context, c Candidate) error
}

// Lookup checks whether a candidate's resource actually exists remotely.
// (false, nil) means expected absence; an error means an unexpected failure.
type Lookup interface {
	Exists(ctx context.Context, c Candidate) (bool, error)
}

// Result records the outcome for one candidate.
type Result struct {
	Candidate Candidate
	Outcome   Outcome
	Err       error
}

// Summary aggregates a full importer run.
type Summary struct {
	Results  []Result
	Imported int
	Skipped  int
	Absent   int
	Blocked  int
	Failed   int
}

// Importer walks a candidate list strictly sequentially, so that every parent
// import is visible in tracked state before any of its children is attempted.
type Importer struct {
	store  StateStore
	lookup Lookup
}

func New(store StateStore, lookup Lookup) *Importer {
	return &Importer{
		store:  store,
		lookup: lookup,
	}
}

// Run processes every candidate and returns a summary. A single candidate's
// unexpected failure does not abort the run; the error return is non-nil iff
// the unexpected-failure count is greater than zero once all candidates have
// been processed.
func (i *Importer) Run(ctx context.Context, candidates []Candidate) (Summary, error) {
	logger := zerolog.Ctx(ctx)

	var summary Summary
	for _, c := range candidates {
		result := i.importOne(ctx, c)
		summary.Results = append(summary.Results, result)

		switch result.Outcome {
		case OutcomeImported:
			summary.Imported++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeAbsent:
			summary.Absent++
		case OutcomeBlocked:
			summary.Blocked++
		case OutcomeFailed:
			summary.Failed++
		}

		printOutcome(result)
		if result.Err != nil && result.Outcome == OutcomeFailed {
			logger.Error().
				Err(result.Err).
				Str("address", c.Address().String()).
				Msg("Unexpected import failure")
		}
	}

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d resources failed to import", summary.Failed, len(candidates))
	}
	return summary, nil
}

func (i *Importer) importOne(ctx context.Context, c Candidate) Result {
	addr := c.Address()

	tracked, err := i.store.Has(ctx, addr)
	if err != nil {
		return Result{Candidate: c, Outcome: OutcomeFailed, Err: err}
	}
	if tracked {
		return Result{Candidate: c, Outcome: OutcomeSkipped}
	}

	if c.Parent != "" {
		parentTracked, err := i.store.Has(ctx, c.Parent)
		if err != nil {
			return Result{Candidate: c, Outcome: OutcomeFailed, Err: err}
		}
		if !parentTracked {
			return Result{
				Candidate: c,
				Outcome:   OutcomeBlocked,
				Err:       fmt.Errorf("%w: %s", apperrors.ErrParentNotTracked, c.Parent),
			}
		}
	}

	exists, err := i.lookup.Exists(ctx, c)
	if err != nil {
		return Result{Candidate: c, Outcome: OutcomeFailed, Err: err}
	}
	if !exists {
		return Result{Candidate: c, Outcome: OutcomeAbsent}
	}

	if err := i.store.Track(ctx, c); err != nil {
		return Result{Candidate: c, Outcome: OutcomeFailed, Err: err}
	}
	return Result{Candidate: c, Outcome: OutcomeImported}
}

// printOutcome writes one human-readable line per resource so an operator can
// see which of N resources needs attention without re-running the whole batch.
func printOutcome(r Result) {
	addr := r.Candidate.Address()
	switch r.Outcome {
	case OutcomeImported:
		fmt.Printf("  ✓ %s imported (%s)\n", addr, r.Candidate.ExternalID)
	case OutcomeSkipped:
		fmt.Printf("  - %s already tracked, skipped\n", addr)
	case OutcomeAbsent:
		fmt.Printf("  - %s not found remotely (expected before first deploy)\n", addr)
	case OutcomeBlocked:
		fmt.Printf("  - %s blocked: %v\n", addr, r.Err)
	case OutcomeFailed:
		fmt.Printf("  ✗ %s failed: %v\n", addr, r.Err)
	}
}

// PrintSummary writes the end-of-run totals.
func PrintSummary(s Summary) {
	fmt.Printf("\nImport summary: %d imported, %d skipped, %d absent, %d blocked, %d failed\n",
		s.Imported, s.Skipped, s.Absent, s.Blocked, s.Failed)
}
