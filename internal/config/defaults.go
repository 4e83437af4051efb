package config

// GetDefaultConfigTemplate returns a fully commented config template
// that helps users understand all available options
func GetDefaultConfigTemplate() string {
	return `# stepflow configuration
# See 'stepflow config keys' for all options

# Scheduling
max_concurrent_scenarios: 64          # Scenarios in flight at once (>= 1)
fail_fast: false                      # Stop admitting scenarios after the first terminal failure
serial_tags: "@serial"                # Tag expression for scenarios that must run alone
reorder_watermark: 0                  # Pause admission while this many results wait to be reported (0 = off)
step_timeout: 0s                      # Per-step timeout (0 = none)

# Retries
retry_tags: ""                        # Tag expression limiting retries (empty = every scenario)
retries:
  count: 0                            # Retries after the first attempt
  after: 0s                           # Delay between attempts
  deadline: ""                        # RFC3339 instant after which no retry starts
  budget: 0s                          # Retry deadline relative to run start (0 = none)

# Logging
log_level: info                       # debug | info | warn | error
log_format: console                   # console | json
`
}

// GetDefaults returns the default configuration values
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"max_concurrent_scenarios": 64,
		"fail_fast":                false,
		"serial_tags":              "@serial",
		"retry_tags":               "",
		"reorder_watermark":        0,
		"step_timeout":             "0s",
		"retries.count":            0,
		"retries.after":            "0s",
		"retries.deadline":         "",
		"retries.budget":           "0s",
		"log_level":                "info",
		"log_format":               "console",
	}
}
