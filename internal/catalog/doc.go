// Package catalog defines the records, contracts, and sentinel errors shared by
// the fetch, extraction, normalization, orchestration, and persistence layers
// of the two-phase catalog crawler.
package catalog
