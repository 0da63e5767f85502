// Package api serves the published dataset and run status over HTTP for the
// mobile client. Read-only; writes happen only through pipeline runs.
package api
