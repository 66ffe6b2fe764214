// Package shared holds helpers used across packages that belong to no
// single layer. Its testutil subpackage captures slog output and builds
// tables from plain Go values for tests.
package shared
