package ollama

// Config contains settings for the local inference server.
type Config struct {
	BaseURL string `env:"OLLAMA_BASE_URL"      envDefault:"http://localhost:11434"`
	Model   string `env:"OLLAMA_MODEL"         envDefault:"qwen2.5-coder"`
	// MaxTokens is the default generation cap when the router passes none.
	MaxTokens int `env:"OLLAMA_MAX_TOKENS"    envDefault:"256"`
	// Timeout is the request timeout in seconds.
	Timeout int `env:"OLLAMA_TIMEOUT"       envDefault:"60"`
	// ProbeTimeout bounds the health probe, in seconds.
	ProbeTimeout int `env:"OLLAMA_PROBE_TIMEOUT" envDefault:"3"`
}
