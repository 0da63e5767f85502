// Package cachestore persists the pipeline's shared key→value caches and
// reconciles deltas produced by workers that ran against private copies.
//
// One JSON file per cache domain (geocoding, valuation, unit counts, upload
// manifests). Every entry records a logical last-validated timestamp inside
// the value itself; reconciliation never trusts file modification times,
// because worker deltas can arrive out of wall-clock order. Within a phase,
// exclusive access to a cache file is guaranteed by phase-graph construction,
// not by locking here.
package cachestore
