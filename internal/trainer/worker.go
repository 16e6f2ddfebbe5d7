package trainer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vk/selftraingo/internal/nn"
)

// forwardResult carries what the loss functions need from one sample's
// forward pass.
type forwardResult struct {
	logits    []float64
	embedding []float64
}

// parallelForward runs the forward pass for every example in the batch,
// fanning the work out over the trainer's workers.
func (t *Trainer) parallelForward(ctx context.Context, batch []Example) ([]forwardResult, error) {
	results := make([]forwardResult, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	indices := make(chan int)
	for w := 0; w < t.workers; w++ {
		g.Go(func() error {
			for i := range indices {
				results[i] = forwardResult{
					logits:    t.net.Logits(batch[i].Image),
					embedding: t.net.Embed(batch[i].Image),
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(indices)
		for i := range batch {
			select {
			case indices <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// parallelGradients backpropagates every sample's deltas, each worker
// accumulating into a private gradient set, and merges the results.
func (t *Trainer) parallelGradients(ctx context.Context, batch []Example, deltas []nn.SampleDeltas) (*nn.Gradients, error) {
	partials := make([]*nn.Gradients, t.workers)

	g, ctx := errgroup.WithContext(ctx)
	indices := make(chan int)
	for w := 0; w < t.workers; w++ {
		w := w
		g.Go(func() error {
			grads := nn.NewGradients(t.net)
			partials[w] = grads
			for i := range indices {
				if deltas[i].Logits == nil && deltas[i].Embedding == nil {
					continue
				}
				if err := t.net.Accumulate(grads, batch[i].Image, deltas[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(indices)
		for i := range batch {
			select {
			case indices <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		merged.Add(p)
	}
	merged.Scale(1 / float64(len(batch)))
	return merged, nil
}
