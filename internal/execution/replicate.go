package execution

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/replicate/replicate-go"
)

const (
	// DefaultModel is the Replicate model used when none is configured.
	DefaultModel = "google/nano-banana"

	DefaultAspectRatio  = "3:4"
	DefaultOutputFormat = "jpg"
)

// ReplicateEngine generates images through the Replicate predictions API.
type ReplicateEngine struct {
	owner string
	name  string

	aspectRatio  string
	outputFormat string

	client     replicateClient
	httpClient *http.Client
}

// ReplicateEngineBuilder builds a ReplicateEngine with options
type ReplicateEngineBuilder struct {
	engine *ReplicateEngine
	err    error
}

type ReplicateEngineBuilderOptions struct {
	// Token is the API token. When blank, REPLICATE_API_TOKEN is read from the environment.
	Token string

	AspectRatio  string
	OutputFormat string

	// HTTPClient is used for the API and for image downloads. Defaults to a pooled cleanhttp client.
	HTTPClient *http.Client

	NewReplicateClient func(opts ...replicate.ClientOption) (replicateClient, error)
}

// NewReplicateEngineBuilder creates a builder for ReplicateEngine
//   - model - "owner/name" reference of the model. Blank means DefaultModel.
func NewReplicateEngineBuilder(model string, options *ReplicateEngineBuilderOptions) *ReplicateEngineBuilder {
	if options == nil {
		options = &ReplicateEngineBuilderOptions{}
	}

	if model == "" {
		model = DefaultModel
	}

	builder := &ReplicateEngineBuilder{
		engine: &ReplicateEngine{
			aspectRatio:  valueOr(options.AspectRatio, DefaultAspectRatio),
			outputFormat: valueOr(options.OutputFormat, DefaultOutputFormat),
			httpClient:   options.HTTPClient,
		},
	}

	owner, name, ok := strings.Cut(model, "/")
	if !ok || owner == "" || name == "" {
		builder.err = fmt.Errorf("model %q must be in the form owner/name", model)
		return builder
	}
	builder.engine.owner, builder.engine.name = owner, name

	if builder.engine.httpClient == nil {
		builder.engine.httpClient = cleanhttp.DefaultPooledClient()
	}

	clientOpts := []replicate.ClientOption{replicate.WithHTTPClient(builder.engine.httpClient)}
	if options.Token != "" {
		clientOpts = append(clientOpts, replicate.WithToken(options.Token))
	} else {
		clientOpts = append(clientOpts, replicate.WithTokenFromEnv())
	}

	newClient := newReplicateClient
	if options.NewReplicateClient != nil {
		newClient = options.NewReplicateClient
	}

	client, err := newClient(clientOpts...)
	if err != nil {
		builder.err = fmt.Errorf("failed to create replicate client: %w", err)
		return builder
	}

	builder.engine.client = client
	return builder
}

func (b *ReplicateEngineBuilder) Build() (*ReplicateEngine, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.engine, nil
}

// Model returns the "owner/name" reference the engine submits to.
func (e *ReplicateEngine) Model() string {
	return e.owner + "/" + e.name
}

// Generate submits a prediction, waits for it to finish and downloads the
// resulting image.
func (e *ReplicateEngine) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if req == nil {
		return nil, generationErrorf("", "nil req was passed to ReplicateEngine.Generate")
	}

	input := replicate.PredictionInput{
		"prompt":        req.Prompt,
		"image_input":   []string{req.StyleDataURL},
		"aspect_ratio":  e.aspectRatio,
		"output_format": e.outputFormat,
	}

	prediction, err := e.client.CreatePrediction(ctx, e.owner, e.name, input)
	if err != nil {
		return nil, generationErrorf("", "failed to create prediction: %w", err)
	}

	if req.OnAccepted != nil {
		req.OnAccepted(prediction.ID)
	}

	slog.Debug("Prediction accepted", "id", prediction.ID, "model", e.Model())

	if err := e.client.Wait(ctx, prediction); err != nil {
		return nil, generationErrorf(prediction.ID, "failed waiting for prediction: %w", err)
	}

	if prediction.Status != replicate.Succeeded {
		return nil, generationErrorf(prediction.ID, "prediction %s: %s", prediction.Status, predictionErrorText(prediction))
	}

	imageURL, err := outputURL(prediction.Output)
	if err != nil {
		return nil, &GenerationError{ProviderID: prediction.ID, Err: err}
	}

	data, err := e.download(ctx, imageURL)
	if err != nil {
		return nil, &GenerationError{ProviderID: prediction.ID, Err: err}
	}

	return &GenerateResponse{
		ProviderID: prediction.ID,
		Image:      data,
		SourceURL:  imageURL,
	}, nil
}

func (e *ReplicateEngine) download(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL %q: %w", url, err)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to download image: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	return data, nil
}

// outputURL accepts either a single URL or a list whose first element is the URL.
func outputURL(output any) (string, error) {
	switch v := output.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok && s != "" {
				return s, nil
			}
		}
	case []string:
		if len(v) > 0 && v[0] != "" {
			return v[0], nil
		}
	}
	return "", fmt.Errorf("unexpected prediction output %T", output)
}

func predictionErrorText(p *replicate.Prediction) string {
	if p.Error == nil {
		return "no error details"
	}
	return fmt.Sprint(p.Error)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
