// Package batch discovers independent migration units beneath a parent
// directory and runs a migration across each of them, sequentially or in
// parallel, aggregating the per-unit outcomes into a single classification.
package batch
