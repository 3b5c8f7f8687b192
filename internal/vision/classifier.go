package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// LoadClassifier creates a classifier on the preferred delegate. A GPU
// failure is retried once on CPU. When no delegate works the error wraps
// ErrModelUnavailable and nothing is retried automatically.
func LoadClassifier(ctx context.Context, factory ClassifierFactory, opts ClassifierOptions, logger zerolog.Logger) (Classifier, Delegate, error) {
	if opts.Delegate == "" {
		opts.Delegate = DelegateGPU
	}
	if opts.NumHands <= 0 {
		opts.NumHands = 1
	}

	c, err := factory.NewClassifier(ctx, opts)
	if err == nil {
		return c, opts.Delegate, nil
	}
	if opts.Delegate != DelegateGPU || ctx.Err() != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	logger.Warn().Err(err).Msg("GPU classifier failed, falling back to CPU")

	opts.Delegate = DelegateCPU
	c, cpuErr := factory.NewClassifier(ctx, opts)
	if cpuErr != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrModelUnavailable, errors.Join(err, cpuErr))
	}
	return c, DelegateCPU, nil
}
