// Package errors provides the classified error type used across docpublish.
//
// Every failure that reaches the CLI carries a category (config, tool,
// subprocess, filesystem, git, ...), a severity and optional structured
// context. The CLI adapter turns a category into a process exit code; errors
// from external commands carry the command's own exit status so it can be
// propagated unchanged.
//
// Example usage:
//
//	err := errors.SubprocessError("mkdocs build failed", 1).
//		WithContext("tool", "mkdocs").
//		WithCause(runErr).
//		Build()
package errors
