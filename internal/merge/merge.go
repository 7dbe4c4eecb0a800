// Package merge folds partial context updates into a business context.
package merge

import "github.com/alanpac24/Vibebusiness/internal/models"

// Apply returns current with update folded in. Present top-level fields replace
// the current ones wholesale; agent outputs are upserted by agent id. Neither
// argument is modified, and applying the same update twice yields the same
// context as applying it once.
func Apply(current models.BusinessContext, update models.ContextUpdate) models.BusinessContext {
	next := current.Clone()
	if update.CompanyProfile != nil {
		next.CompanyProfile = *update.CompanyProfile
	}
	if update.MarketIntelligence != nil {
		mi := *update.MarketIntelligence
		next.MarketIntelligence = &mi
	}
	if update.ProductSpecs != nil {
		ps := *update.ProductSpecs
		next.ProductSpecs = &ps
	}
	if update.BusinessOperations != nil {
		bo := *update.BusinessOperations
		next.BusinessOperations = &bo
	}
	for id, out := range update.AgentOutputs {
		next.AgentOutputs[id] = out
	}
	return next
}
