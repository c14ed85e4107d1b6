package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Ollama    OllamaRate           `yaml:"ollama" mapstructure:"ollama"`
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// OllamaRate prices local inference. Local models are not metered by the
// provider; the rate amortizes hardware and power so dedupe spend stays
// comparable across verifier backends.
type OllamaRate struct {
	CentsPerKTok float64 `yaml:"cents_per_ktok" mapstructure:"cents_per_ktok"`
}

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes per-call costs in cents.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Ollama computes the cost in cents for a local generation call.
func (c *Calculator) Ollama(promptTokens, completionTokens int) float64 {
	return float64(promptTokens+completionTokens) / 1000.0 * c.rates.Ollama.CentsPerKTok
}

// Anthropic computes the cost in cents for a Claude call. Unknown models
// cost zero.
func (c *Calculator) Anthropic(model string, inputTokens, outputTokens int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	usd := (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
	return usd * 100
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Ollama: OllamaRate{CentsPerKTok: 0.01},
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
	}
}
