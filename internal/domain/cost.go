package domain

const tokensPerK = 1000.0

// MoneyRate is a per-token USD rate pair.
type MoneyRate struct {
	InputPerToken  float64
	OutputPerToken float64
}

// CostTable holds the credit and monetary rates per provider. Credit rates
// are charged against the user's balance; monetary estimates are telemetry
// only and never billed.
type CostTable struct {
	// MinPremiumCredits floors the charge on any rate-bearing provider so
	// trivial exchanges on a paid path are never near-free.
	MinPremiumCredits int

	// CreditPerK is credits charged per 1000 total tokens. Zero means the
	// provider is included in the plan.
	CreditPerK map[Provider]int

	// Money maps providers to their USD rate pairs. Absent means free.
	Money map[Provider]MoneyRate
}

// DefaultCostTable returns the stock rates.
func DefaultCostTable() *CostTable {
	return &CostTable{
		MinPremiumCredits: 10,
		CreditPerK: map[Provider]int{
			ProviderBridge:     10, // premium via the bridge
			ProviderCloudPaid:  5,  // paid cloud model
			ProviderCloudFree:  0,  // included in plan
			ProviderLocal:      0,  // included in plan
			ProviderAutomation: 0,  // included in plan
			ProviderBuiltin:    0,
		},
		Money: map[Provider]MoneyRate{
			ProviderBridge:    {InputPerToken: 0.0000012, OutputPerToken: 0.000004},
			ProviderCloudPaid: {InputPerToken: 0.0000006, OutputPerToken: 0.000002},
		},
	}
}

// CreditCost computes the internal credit charge for a call. Zero-rate
// providers always cost 0; rate-bearing providers never charge below the
// configured floor.
func (t *CostTable) CreditCost(provider Provider, tokensIn, tokensOut int) int {
	rate := t.CreditPerK[provider]
	if rate == 0 {
		return 0
	}

	totalTokens := tokensIn + tokensOut
	cost := (totalTokens*rate + int(tokensPerK) - 1) / int(tokensPerK)
	if cost < t.MinPremiumCredits {
		return t.MinPremiumCredits
	}
	return cost
}

// EstimateCost computes the monetary cost estimate for a call in USD.
func (t *CostTable) EstimateCost(provider Provider, tokensIn, tokensOut int) float64 {
	rate, ok := t.Money[provider]
	if !ok {
		return 0
	}
	return float64(tokensIn)*rate.InputPerToken + float64(tokensOut)*rate.OutputPerToken
}
