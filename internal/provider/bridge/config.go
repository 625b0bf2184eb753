package bridge

// Config contains settings for the premium bridge client.
type Config struct {
	// BaseURL is the bridge's HTTP surface, e.g. http://bridge:8787.
	BaseURL string `env:"BRIDGE_URL"`
	// Token is the optional bearer token for the bridge.
	Token string `env:"BRIDGE_TOKEN"`
	// Model is the model identifier sent to the bridge.
	Model string `env:"BRIDGE_MODEL"         envDefault:"premium"`
	// Timeout is the request timeout in seconds. Premium inference is slow.
	Timeout int `env:"BRIDGE_TIMEOUT"      envDefault:"120"`
	// ProbeTimeout bounds the health probe, in seconds.
	ProbeTimeout int `env:"BRIDGE_PROBE_TIMEOUT" envDefault:"3"`
}
