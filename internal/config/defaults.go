package config

// Default configuration values.
const (
	DefaultStateFile       = "nestgrid.db"
	DefaultOutput          = "text"
	DefaultServerHost      = "127.0.0.1"
	DefaultServerPort      = 8324
	DefaultBatchSize       = 5
	DefaultAutoRunDebounce = 2
)

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Run.BatchSize == 0 {
		c.Run.BatchSize = DefaultBatchSize
	}
	if c.Run.AutoRunDebounceSeconds == 0 {
		c.Run.AutoRunDebounceSeconds = DefaultAutoRunDebounce
	}
	if c.Nest.Type == "postgres" && c.Nest.Port == 0 {
		c.Nest.Port = 5432
	}
}
