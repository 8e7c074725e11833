// Package catalog implements the position tracking engine: paginated
// catalog search, retry handling, composite rank encoding and per-product
// rank aggregation. It defines the core types and interfaces shared by the
// fetcher, scheduler and storage subsystems.
package catalog
