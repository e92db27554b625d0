// Package cfg holds the application configuration for the Sehat server.
package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config collects all server settings. Fields are bound to flags and filled
// from the environment by main.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	ClaudeAPIKey          string
	ClaudeModel           string
	ModelTimeoutSeconds   int
	DatabaseURL           string
	SMSGatewayURL         string
	SMSGatewayToken       string
	MaxDeliveryRetries    int
	RetryBaseDelayMillis  int
	CaseloadWindowHours   int
	CaseloadCeiling       int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for the triage API (empty = no auth)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude severity model (empty = base-score assessment only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.IntVar(&c.ModelTimeoutSeconds, "model-timeout-seconds", 30, "per-call timeout for the severity model (1..120)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SMSGatewayURL, "sms-gateway-url", "", "HTTP SMS gateway endpoint (empty = in-app channel only)")
	fs.StringVar(&c.SMSGatewayToken, "sms-gateway-token", "", "bearer token for the SMS gateway")
	fs.IntVar(&c.MaxDeliveryRetries, "max-delivery-retries", 3, "delivery attempts per notification channel (1..10)")
	fs.IntVar(&c.RetryBaseDelayMillis, "retry-base-delay-millis", 2000, "base delay between delivery attempts, doubled each retry (1..60000)")
	fs.IntVar(&c.CaseloadWindowHours, "caseload-window-hours", 24, "window for counting a worker's active cases (1..168)")
	fs.IntVar(&c.CaseloadCeiling, "caseload-ceiling", 10, "active cases at which a worker stops being available (1..100)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.ModelTimeoutSeconds <= 0 || c.ModelTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid MODEL_TIMEOUT_SECONDS %d (must be 1..120)", c.ModelTimeoutSeconds))
	}

	// A model without a key cannot be called
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if c.MaxDeliveryRetries <= 0 || c.MaxDeliveryRetries > 10 {
		errs = append(errs, fmt.Errorf("invalid MAX_DELIVERY_RETRIES %d (must be 1..10)", c.MaxDeliveryRetries))
	}
	if c.RetryBaseDelayMillis <= 0 || c.RetryBaseDelayMillis > 60000 {
		errs = append(errs, fmt.Errorf("invalid RETRY_BASE_DELAY_MILLIS %d (must be 1..60000)", c.RetryBaseDelayMillis))
	}

	if c.CaseloadWindowHours <= 0 || c.CaseloadWindowHours > 168 {
		errs = append(errs, fmt.Errorf("invalid CASELOAD_WINDOW_HOURS %d (must be 1..168)", c.CaseloadWindowHours))
	}
	if c.CaseloadCeiling <= 0 || c.CaseloadCeiling > 100 {
		errs = append(errs, fmt.Errorf("invalid CASELOAD_CEILING %d (must be 1..100)", c.CaseloadCeiling))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
