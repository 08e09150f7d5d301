package model

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ModelPricing defines input and output token costs for a model.
// Prices are in USD per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// Static pricing for the default models of each adapter and their close
// relatives. Unknown models are tracked at zero cost.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku-20241022":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// Call records one metered chat completion.
type Call struct {
	Model        string    `json:"model"`
	Node         string    `json:"node,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Timestamp    time.Time `json:"timestamp"`
}

// CostTracker accumulates token usage and estimated spend across the model
// calls of one or more runs.
//
// Safe for concurrent use.
type CostTracker struct {
	mu sync.RWMutex

	pricing      map[string]ModelPricing
	calls        []Call
	totalCost    float64
	modelCosts   map[string]float64
	inputTokens  int64
	outputTokens int64
}

// NewCostTracker creates a tracker using the built-in pricing table.
func NewCostTracker() *CostTracker {
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for name, p := range defaultModelPricing {
		pricing[name] = p
	}
	return &CostTracker{
		pricing:    pricing,
		modelCosts: make(map[string]float64),
	}
}

// Record adds one call to the tracker and returns its estimated cost.
func (ct *CostTracker) Record(modelName, node string, usage Usage) float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	p := ct.pricing[modelName]
	cost := float64(usage.InputTokens)/1_000_000*p.InputPer1M +
		float64(usage.OutputTokens)/1_000_000*p.OutputPer1M

	ct.calls = append(ct.calls, Call{
		Model:        modelName,
		Node:         node,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      cost,
		Timestamp:    time.Now(),
	})
	ct.totalCost += cost
	ct.modelCosts[modelName] += cost
	ct.inputTokens += int64(usage.InputTokens)
	ct.outputTokens += int64(usage.OutputTokens)
	return cost
}

// SetPricing overrides the price of a model.
func (ct *CostTracker) SetPricing(modelName string, inputPer1M, outputPer1M float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.pricing[modelName] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

// TotalCost returns the accumulated spend in USD.
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.totalCost
}

// CostByModel returns a copy of the per-model spend.
func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	costs := make(map[string]float64, len(ct.modelCosts))
	for name, cost := range ct.modelCosts {
		costs[name] = cost
	}
	return costs
}

// TokenUsage returns the accumulated input and output tokens.
func (ct *CostTracker) TokenUsage() (input, output int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.inputTokens, ct.outputTokens
}

// Calls returns a copy of the call history.
func (ct *CostTracker) Calls() []Call {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return append([]Call(nil), ct.calls...)
}

func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return fmt.Sprintf("%d calls, %d input tokens, %d output tokens, $%.4f",
		len(ct.calls), ct.inputTokens, ct.outputTokens, ct.totalCost)
}

// Metered wraps m so every successful call is recorded in tracker under the
// given model and node names.
//
// Example:
//
//	costs := model.NewCostTracker()
//	planner := &agents.ModelPlanner{
//	    Model: model.Metered(openai.NewChatModel(key, "gpt-4o"), "gpt-4o", "planner", costs),
//	}
func Metered(m ChatModel, modelName, node string, tracker *CostTracker) ChatModel {
	return ChatModelFunc(func(ctx context.Context, messages []Message) (ChatOut, error) {
		out, err := m.Chat(ctx, messages)
		if err == nil {
			tracker.Record(modelName, node, out.Usage)
		}
		return out, err
	})
}
