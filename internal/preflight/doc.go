// Package preflight provides readiness checks for the filesystem paths,
// database, and model endpoints eventscout depends on.
//
// The CLI "eventscout status" command runs RunAll and renders each Result.
// LLM checks send one tiny prompt per endpoint and can be skipped with
// Options.SkipLLM when quota matters.
package preflight
