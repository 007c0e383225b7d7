// Package logs reads the daemon log file for the CLI: the last N lines, then
// optionally every line appended afterwards. Rotation by truncation is
// detected and reading restarts from the top of the file.
package logs
