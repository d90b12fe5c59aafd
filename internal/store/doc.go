// Package store implements the storage layer: a DuckDB-backed translator
// from the declarative JSON query language to SQL, the canonical result
// mapping, and the readings-specific operations.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Store (facade)                          │
//	├──────────────────┬──────────────────────┬───────────────────────┤
//	│  ReadingsStore   │      TableStore      │    PluginDataStore    │
//	│       ▼          │          ▼           │           ▼           │
//	│    readings      │  any common table    │      plugin_data      │
//	├──────────────────┴──────────────────────┴───────────────────────┤
//	│   Translator (JSON descriptor → SQL)  ·  result mapper (C rows  │
//	│   → {"count", "rows"} document)  ·  SQLBuffer (literal frags)   │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Tables
//
//	┌────────────────────┬────────────────────────────────────────────┐
//	│  Table             │  Purpose                                   │
//	├────────────────────┼────────────────────────────────────────────┤
//	│  readings          │  Buffered sensor readings (monotonic id)   │
//	│  statistics        │  Ingest counters (INGEST_*, READINGS, …)   │
//	│  plugin_data       │  Opaque per-filter state blobs             │
//	│  schema_migrations │  Migration version tracking                │
//	└────────────────────┴────────────────────────────────────────────┘
//
// # Query language
//
// A retrieve descriptor may carry `return` (projection, including JSON-path
// navigation column->'p1'->'p2'), `aggregate` (overrides the projection),
// `where` (recursive and/or chains, children parenthesized), `sort`,
// `group`, `skip` and `limit`. Insert payloads map members to columns;
// string values matching the function-call pattern (e.g. now()) pass
// through as expressions, everything else is quoted with single quotes
// doubled. Update payloads carry `values` and/or `expressions` plus an
// optional `condition`, either singly or batched under `updates`.
//
// The readings append and fetch paths additionally bind values as SQL
// parameters rather than literals.
//
// # Error surface
//
// Translation and backend failures are returned as typed errors and also
// recorded per operation name on the store's error sink, mirroring the
// out-of-band error channel the storage service protocol expects.
package store
