package verify

import (
	"context"

	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/cost"
	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/pkg/anthropic"
)

const anthropicSystem = "You compare business records for a lead deduplication pipeline. Answer only in the requested format."

// AnthropicVerifier verifies duplicates via the Anthropic API, used where
// no local model server is available.
type AnthropicVerifier struct {
	client anthropic.Client
	model  string
	calc   *cost.Calculator
	costs  cost.Sink
}

// NewAnthropicVerifier creates a Claude-backed verifier.
func NewAnthropicVerifier(client anthropic.Client, modelName string, calc *cost.Calculator, costs cost.Sink) *AnthropicVerifier {
	return &AnthropicVerifier{
		client: client,
		model:  modelName,
		calc:   calc,
		costs:  costs,
	}
}

// VerifyDuplicates implements Verifier with the same fail-closed policy as
// the Ollama backend.
func (v *AnthropicVerifier) VerifyDuplicates(ctx context.Context, b1, b2 *model.Business) Verdict {
	temp := verifyTemperature
	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       v.model,
		MaxTokens:   verifyNumPredict,
		System:      anthropicSystem,
		Prompt:      BuildPrompt(b1, b2),
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("verify: anthropic call failed",
			zap.Int64("business1_id", b1.ID),
			zap.Int64("business2_id", b2.ID),
			zap.Error(err),
		)
		return failClosed(err)
	}

	v.costs.Record(ctx, cost.Event{
		Service:   "anthropic",
		Operation: "dedupe_verification",
		CostCents: v.calc.Anthropic(v.model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
		Tier:      2,
		Tokens:    int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	})

	return ParseVerdict(resp.Text)
}
