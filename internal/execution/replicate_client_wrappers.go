package execution

import (
	"context"

	"github.com/replicate/replicate-go"
)

//go:generate go tool mockgen -source=replicate_client_wrappers.go -destination=mocks_test.go -package=execution

// replicateClient is just an interface over [*replicate.Client]
type replicateClient interface {
	// CreatePrediction maps to [replicate.Client.CreatePredictionWithModel]
	CreatePrediction(ctx context.Context, owner, name string, input replicate.PredictionInput) (*replicate.Prediction, error)

	// Wait maps to [replicate.Client.Wait]
	Wait(ctx context.Context, prediction *replicate.Prediction) error
}

func newReplicateClient(opts ...replicate.ClientOption) (replicateClient, error) {
	inner, err := replicate.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &replicateClientWrapper{inner: inner}, nil
}

type replicateClientWrapper struct {
	inner *replicate.Client
}

func (w *replicateClientWrapper) CreatePrediction(ctx context.Context, owner, name string, input replicate.PredictionInput) (*replicate.Prediction, error) {
	return w.inner.CreatePredictionWithModel(ctx, owner, name, input, nil, false)
}

func (w *replicateClientWrapper) Wait(ctx context.Context, prediction *replicate.Prediction) error {
	return w.inner.Wait(ctx, prediction)
}
