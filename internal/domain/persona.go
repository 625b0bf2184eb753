package domain

// ResolvePersona maps an intent to a persona tier. A forced persona always
// wins; availability is not consulted at this stage.
func ResolvePersona(intent Intent, forced Persona) Persona {
	if forced != "" {
		return forced
	}

	switch intent {
	case IntentSimple, IntentAutomation:
		return PersonaLocal
	case IntentCoding, IntentPlanning:
		return PersonaCloud
	case IntentComplex:
		return PersonaPremium
	default:
		return PersonaCloud
	}
}

// TokenPolicy is the per-persona output-token budget.
type TokenPolicy struct {
	LocalMaxTokens       int
	CloudMaxTokens       int
	CloudCodingMaxTokens int
	PremiumMaxTokens     int
}

// DefaultTokenPolicy returns the stock budgets: the local tier stays snappy,
// the cloud tier gets more room for code, and premium gets the full window.
func DefaultTokenPolicy() TokenPolicy {
	return TokenPolicy{
		LocalMaxTokens:       256,
		CloudMaxTokens:       1024,
		CloudCodingMaxTokens: 2048,
		PremiumMaxTokens:     4096,
	}
}

// MaxTokens returns the output-token budget for a persona and intent.
func (p TokenPolicy) MaxTokens(persona Persona, intent Intent) int {
	switch persona {
	case PersonaLocal:
		return p.LocalMaxTokens
	case PersonaCloud:
		if intent == IntentCoding {
			return p.CloudCodingMaxTokens
		}
		return p.CloudMaxTokens
	case PersonaPremium:
		return p.PremiumMaxTokens
	default:
		return p.CloudMaxTokens
	}
}

// PersonaForProvider returns the tier a provider actually represents, so a
// fallback response is attributed to the tier that served it. The builtin
// stub carries no tier of its own and keeps the one the request resolved to.
func PersonaForProvider(provider Provider, resolved Persona) Persona {
	switch provider {
	case ProviderBridge, ProviderCloudPaid:
		return PersonaPremium
	case ProviderCloudFree:
		return PersonaCloud
	case ProviderLocal, ProviderAutomation:
		return PersonaLocal
	default:
		return resolved
	}
}
