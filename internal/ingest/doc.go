// Package ingest implements the readings ingest engine: a double-buffered
// queue drained in batches through an ordered filter pipeline into storage,
// with asset discovery and background statistics aggregation.
//
// # Data flow
//
//	plugin ──IngestReading──▶ queue ──(drain)──▶ filters ──▶ storage append
//	                                      │                        │
//	                                      ▼                        ▼
//	                               asset tracker          statistics pending
//	                                                              │
//	                                                     (signal) ▼
//	                                                      statistics flush
//
// # Concurrency
//
// Three long-running contexts per engine: the producer(s) calling
// IngestReading/IngestMany, the drain goroutine and the statistics
// goroutine. Producers only hold the queue mutex for an append; the drain
// swaps the live queue against a fresh one under the same mutex, so storage
// latency never back-pressures the producer beyond that swap. Filter
// callbacks execute on the drain goroutine.
//
// A drained batch either lands in storage completely (counted per asset and
// into READINGS), is re-buffered at the front of the live queue (requeue
// mode, no statistics), or is counted into DISCARDED. Statistics updates
// happen after the fact and may be lost without invalidating reading data;
// a failed flush keeps its pending counts for the next signal.
//
// Shutdown stops both goroutines, then runs one final drain and one final
// flush on the caller before the filters are released.
package ingest
