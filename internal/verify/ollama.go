package verify

import (
	"context"

	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/cost"
	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/pkg/ollama"
)

// Decoding parameters for verification calls: near-deterministic, bounded
// output so a runaway completion cannot inflate cost.
const (
	verifyTemperature = 0.1
	verifyNumPredict  = 200
)

// OllamaVerifier verifies duplicates against a local Ollama endpoint.
type OllamaVerifier struct {
	client ollama.Client
	model  string
	calc   *cost.Calculator
	costs  cost.Sink
}

// NewOllamaVerifier creates a verifier backed by a local model. The cost
// sink and calculator are required collaborators; pass cost.NopSink to
// discard spend tracking.
func NewOllamaVerifier(client ollama.Client, modelName string, calc *cost.Calculator, costs cost.Sink) *OllamaVerifier {
	return &OllamaVerifier{
		client: client,
		model:  modelName,
		calc:   calc,
		costs:  costs,
	}
}

// VerifyDuplicates implements Verifier. One call per pair, no retries: a
// failed call fails closed and the pair is left for the caller's
// non-duplicate branch.
func (v *OllamaVerifier) VerifyDuplicates(ctx context.Context, b1, b2 *model.Business) Verdict {
	resp, err := v.client.Generate(ctx, ollama.GenerateRequest{
		Model:  v.model,
		Prompt: BuildPrompt(b1, b2),
		Options: ollama.Options{
			Temperature: verifyTemperature,
			NumPredict:  verifyNumPredict,
		},
	})
	if err != nil {
		zap.L().Warn("verify: ollama call failed",
			zap.Int64("business1_id", b1.ID),
			zap.Int64("business2_id", b2.ID),
			zap.Error(err),
		)
		return failClosed(err)
	}

	v.costs.Record(ctx, cost.Event{
		Service:   "ollama",
		Operation: "dedupe_verification",
		CostCents: v.calc.Ollama(resp.PromptEvalCount, resp.EvalCount),
		Tier:      1,
		Tokens:    resp.TotalTokens(),
	})

	verdict := ParseVerdict(resp.Response)
	zap.L().Debug("verify: verdict",
		zap.Int64("business1_id", b1.ID),
		zap.Int64("business2_id", b2.ID),
		zap.Bool("is_duplicate", verdict.IsDuplicate),
		zap.Float64("confidence", verdict.Confidence),
	)
	return verdict
}
