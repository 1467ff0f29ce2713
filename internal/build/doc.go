// Package build provides the documentation build pipeline for docpublish.
//
// A build cleans the output root, runs the static-site generator and the
// API-doc generator, merges the figure assets into the API tree, relocates it
// next to the site output and removes the generator's scratch directory. All
// entry points (the build, ci, watch and schedule commands) route through
// BuildService.
//
// Stages run strictly in order and the first failure ends the build. Tool
// failures keep the tool's own exit status so the CLI can return it unchanged.
package build
