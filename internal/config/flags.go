package config

// applies non-empty command line overrides on top of the environment
func (c *Config) ApplyFlags(f Flags) {
	if f.Port != "" {
		c.Port = f.Port
	}
}

// reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
