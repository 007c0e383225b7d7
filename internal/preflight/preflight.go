package preflight

import (
	"context"
	"path/filepath"

	"eventscout/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects which checks RunAll performs.
type Options struct {
	// SkipLLM leaves out the endpoint checks, which spend upstream quota.
	SkipLLM bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Database.Driver == config.DriverSQLite {
		if dir := filepath.Dir(cfg.Database.Path); dir != filepath.Clean(cfg.Paths.DataDir) {
			results = append(results, CheckDirectoryAccess("Database directory", dir))
		}
	}
	results = append(results, CheckDatabase(ctx, cfg))

	if opts.SkipLLM {
		return results
	}
	results = append(results, CheckLLM(ctx, "Primary LLM", cfg.PrimaryLLM()))
	if verificationUsesDistinctLLM(cfg) || !cfg.VerificationLLM().Configured() {
		results = append(results, CheckLLM(ctx, "Verification LLM", cfg.VerificationLLM()))
	} else {
		results = append(results, Result{Name: "Verification LLM", Passed: true, Detail: "same endpoint as primary"})
	}
	return results
}

// verificationUsesDistinctLLM returns true when the verification endpoint
// resolves to a different key, base URL, or model than the primary one.
func verificationUsesDistinctLLM(cfg *config.Config) bool {
	primary := cfg.PrimaryLLM()
	verify := cfg.VerificationLLM()
	return primary.APIKey != verify.APIKey || primary.BaseURL != verify.BaseURL || primary.Model != verify.Model
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
