// Package export pushes the published dataset into Postgres for external
// consumers, one batched transaction per category.
package export
