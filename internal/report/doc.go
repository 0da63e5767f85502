// Package report renders terminal summaries of pipeline runs and dataset
// diffs.
package report
