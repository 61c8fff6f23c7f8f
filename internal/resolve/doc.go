// Package resolve detects version conflicts across scanned projects and picks
// a single version per package under a configured strategy. It also reports
// duplicate-casing mismatches, which are deliberately kept separate from the
// case-sensitive version map.
package resolve
