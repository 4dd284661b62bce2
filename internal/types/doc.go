// Package types holds the records shared by the roster sync pipeline:
// members parsed from the external roster, the live scout and profile rows
// they reconcile against, staged changes awaiting review, and sync sessions.
package types
