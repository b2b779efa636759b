package table

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tabletools/tabcat/tcapi"
)

// MergeAll combines many tables sharing the same key columns into one
// wide table, outer-joining pairwise. Merging is associative and
// commutative on the key, so the work is scheduled as a balanced binary
// reduction across a bounded worker pool; the column order of the result
// is the stable left-to-right concatenation of the inputs regardless of
// how the merges were scheduled.
//
// workers bounds the number of concurrent pairwise merges; values < 1
// mean no parallelism.
//
// Errors:
//
//    - tabcat-error-validation -- when no tables are given, or a pairwise
//      merge fails validation (missing/incompatible key columns)
//    - tabcat-error-not-found -- when a key column is missing from an input
func MergeAll(ctx context.Context, tables []*Table, on []string, workers int) (*Table, error) {
	if len(tables) == 0 {
		return nil, tcapi.ErrorValidation("nothing to merge")
	}
	if workers < 1 {
		workers = 1
	}

	// reduce in rounds: each round outer-joins adjacent pairs, halving
	// the slice. Pairing by adjacency keeps the reduction tree balanced
	// and the column order deterministic.
	layer := append([]*Table(nil), tables...)
	for len(layer) > 1 {
		next := make([]*Table, (len(layer)+1)/2)
		eg, _ := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for i := 0; i < len(layer); i += 2 {
			i := i
			if i+1 == len(layer) {
				next[i/2] = layer[i]
				continue
			}
			eg.Go(func() error {
				merged, err := Join(layer[i], layer[i+1], on, JoinOuter)
				if err != nil {
					return err
				}
				next[i/2] = merged
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		layer = next
	}
	return layer[0], nil
}
