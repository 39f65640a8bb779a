// Package shared holds helpers used by more than one paydash package.
//
// The testutil subpackage provides a capturing slog handler and ledger
// fixtures for tests. Nothing in it is imported by production code.
package shared
