// Package preflight checks the environment before a pipeline run: directory
// access, free disk space, and the reachability of configured services.
package preflight
