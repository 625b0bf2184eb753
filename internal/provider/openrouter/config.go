package openrouter

// Config contains settings for the OpenRouter-compatible cloud providers.
// The paid and free tiers are separate upstream accounts with their own keys
// and models; either may be absent, in which case the matching adapter is
// simply not registered.
type Config struct {
	BaseURL string `env:"OPENROUTER_BASE_URL"      envDefault:"https://openrouter.ai/api/v1"`
	APIKey  string `env:"OPENROUTER_API_KEY"`
	Model   string `env:"OPENROUTER_MODEL"         envDefault:"moonshotai/kimi-k2"`

	FreeBaseURL string `env:"OPENROUTER_FREE_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	FreeAPIKey  string `env:"OPENROUTER_FREE_API_KEY"`
	FreeModel   string `env:"OPENROUTER_FREE_MODEL"    envDefault:"meta-llama/llama-3.3-70b-instruct:free"`

	// Timeout is the request timeout in seconds.
	Timeout int `env:"OPENROUTER_TIMEOUT"       envDefault:"30"`
	// Referer and Title are forwarded as attribution headers.
	Referer string `env:"PUBLIC_URL"               envDefault:"https://geekspace.space"`
	Title   string `env:"OPENROUTER_APP_TITLE"     envDefault:"GeekSpace"`
}

// PaidConfigured reports whether the paid tier has a key.
func (c Config) PaidConfigured() bool {
	return c.APIKey != ""
}

// FreeConfigured reports whether the free tier has a key and model.
func (c Config) FreeConfigured() bool {
	return c.FreeAPIKey != "" && c.FreeModel != ""
}
