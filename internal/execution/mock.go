package execution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

// MockModel is reported as the model of a MockEngine.
const MockModel = "mock"

// MockEngine is an offline GenerationClient. It returns placeholder JPEG
// bytes and IDs derived from the prompt, so repeated runs are reproducible.
type MockEngine struct {
	// FailWhen, if set, makes Generate fail for prompts it returns true for.
	FailWhen func(prompt string) bool

	calls atomic.Int32
}

// NewMockEngine creates a new mock engine
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	m.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, &GenerationError{Err: err}
	}

	if req == nil {
		return nil, generationErrorf("", "nil req was passed to MockEngine.Generate")
	}

	sum := sha256.Sum256([]byte(req.Prompt))
	id := "mock" + hex.EncodeToString(sum[:6])

	if req.OnAccepted != nil {
		req.OnAccepted(id)
	}

	if m.FailWhen != nil && m.FailWhen(req.Prompt) {
		return nil, generationErrorf(id, "mock failure")
	}

	return &GenerateResponse{
		ProviderID: id,
		Image:      placeholderJPEG(id),
		SourceURL:  fmt.Sprintf("mock://%s.jpg", id),
	}, nil
}

// Calls returns how many times Generate was called.
func (m *MockEngine) Calls() int {
	return int(m.calls.Load())
}

// placeholderJPEG returns SOI, a COM segment holding id, and EOI.
func placeholderJPEG(id string) []byte {
	out := []byte{0xFF, 0xD8, 0xFF, 0xFE}
	n := len(id) + 2
	out = append(out, byte(n>>8), byte(n))
	out = append(out, id...)
	return append(out, 0xFF, 0xD9)
}
