package peers

import (
	"context"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"peer_valuation/pkg/core/llm"
	"peer_valuation/pkg/models"
)

// PrepareReport summarises a PrepareVectors batch.
type PrepareReport struct {
	Unique int // distinct normalized names dispatched
	Ready  int // distinct names that got a valid vector
	Failed []string
}

func (b *Builder) logger() arbor.ILogger {
	if b.Logger == nil {
		return arbor.NewLogger()
	}
	return b.Logger
}

// PrepareVectors computes EmbeddingVector for every peer on a bounded worker pool.
//
// Names are normalized and de-duplicated first, so each distinct company is
// embedded once; duplicates receive the same vector. The embedder is pinned for
// the whole batch, so a provider switch mid-batch cannot mix vector spaces. A failing peer is logged
// and left without a vector; the batch carries on. Vectors are attached to the
// companies only after all workers finish. The returned error is non-nil only
// when ctx is cancelled.
func (b *Builder) PrepareVectors(ctx context.Context, peers models.PeerSet) (PrepareReport, error) {
	log := b.logger()
	pinned := *b
	pinned.Embedder = llm.Pin(b.Embedder)

	// Group by normalized name, first occurrence wins
	var order []string
	groups := make(map[string][]*models.Company)
	for _, c := range peers {
		if c == nil {
			continue
		}
		key := c.Key()
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	workers := b.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([][]float64, len(order))
	errs := make([]error, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range order {
		company := groups[key][0]
		g.Go(func() error {
			if gctx.Err() != nil {
				errs[i] = gctx.Err()
				return nil
			}
			vec, err := pinned.BuildVector(gctx, company)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = vec
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors

	report := PrepareReport{Unique: len(order)}
	for i, key := range order {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("company", groups[key][0].Name).Msg("Peer vector failed")
			report.Failed = append(report.Failed, groups[key][0].Name)
			continue
		}
		report.Ready++
		for _, c := range groups[key] {
			c.EmbeddingVector = results[i]
		}
	}

	log.Info().Int("unique", report.Unique).Int("ready", report.Ready).Int("failed", len(report.Failed)).Msg("Peer vectors prepared")
	return report, ctx.Err()
}
