package model

import (
	"strings"
	"sync"
)

// Pricing holds USD rates per million tokens for one model.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost converts a usage record into a USD amount under these rates.
func (p Pricing) Cost(usage TokenUsage) float64 {
	return float64(usage.InputTokens)/1e6*p.InputPerMTok +
		float64(usage.OutputTokens)/1e6*p.OutputPerMTok
}

var pricingMu sync.RWMutex

// pricingTable maps model-name prefixes to rates. Entries are matched by the
// longest prefix so dated snapshots resolve to their family rates.
var pricingTable = map[string]Pricing{
	"claude-opus-4":     {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"claude-sonnet-4":   {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"gpt-4o-mini":       {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4o":            {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4.1-mini":      {InputPerMTok: 0.40, OutputPerMTok: 1.60},
	"gpt-4.1":           {InputPerMTok: 2.00, OutputPerMTok: 8.00},
	"o3":                {InputPerMTok: 2.00, OutputPerMTok: 8.00},
	"mock":              {InputPerMTok: 0, OutputPerMTok: 0},
}

// RegisterPricing adds or replaces the rates for a model-name prefix, for
// deployments using models not in the built-in table.
func RegisterPricing(prefix string, p Pricing) {
	pricingMu.Lock()
	defer pricingMu.Unlock()
	pricingTable[prefix] = p
}

// LookupPricing resolves rates for a model name by longest matching prefix.
// The second return is false for unknown models.
func LookupPricing(modelName string) (Pricing, bool) {
	pricingMu.RLock()
	defer pricingMu.RUnlock()

	var (
		best    Pricing
		bestLen = -1
	)
	for prefix, p := range pricingTable {
		if strings.HasPrefix(modelName, prefix) && len(prefix) > bestLen {
			best = p
			bestLen = len(prefix)
		}
	}
	return best, bestLen >= 0
}

// CostOf converts usage under a named model into USD. Unknown models cost
// zero; the spend they represent is invisible to the credit limit, so
// deployments with custom models should register their rates.
func CostOf(modelName string, usage TokenUsage) float64 {
	p, ok := LookupPricing(modelName)
	if !ok {
		return 0
	}
	return p.Cost(usage)
}
