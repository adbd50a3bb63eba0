package execution

import (
	"context"
	"errors"
	"fmt"
)

// ErrGenerationFailed matches every error returned by a GenerationClient,
// whether it came from submission, polling or the image download.
var ErrGenerationFailed = errors.New("generation failed")

// GenerationClient produces one image for a prompt and a style reference.
type GenerationClient interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single generation call.
type GenerateRequest struct {
	Prompt string

	// StyleDataURL is the style reference image encoded as a data URL. It is
	// computed once per run and shared by every request.
	StyleDataURL string

	// OnAccepted, when set, is called with the provider's identifier as soon
	// as the request is accepted, before the image is ready.
	OnAccepted func(providerID string)
}

// GenerateResponse carries the downloaded image.
type GenerateResponse struct {
	ProviderID string
	Image      []byte
	SourceURL  string
}

// GenerationError wraps any failure of a generation call. ProviderID is set
// when the provider had already accepted the request.
type GenerationError struct {
	ProviderID string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return ErrGenerationFailed.Error()
	}
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is makes every GenerationError match ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func generationErrorf(providerID, format string, args ...any) error {
	return &GenerationError{ProviderID: providerID, Err: fmt.Errorf(format, args...)}
}
