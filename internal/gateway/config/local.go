package config

// applyLocal fills in docker-less developer defaults. Without AUTH_TOKENS
// every request runs as the demo user.
func applyLocal(cfg *Config) {
	if cfg.Auth.Tokens == "" {
		cfg.Auth.AllowAnonymous = true
	}
	cfg.FrontendURL = firstNonEmpty(cfg.FrontendURL, "http://localhost:3000")
	if cfg.DatabaseURL == "" {
		cfg.SQLitePath = firstNonEmpty(cfg.SQLitePath, "tmp/uigen.db")
	}
	cfg.LLM.UsageLedgerPath = firstNonEmpty(cfg.LLM.UsageLedgerPath, "tmp/llm_usage.json")
}
