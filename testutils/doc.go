// Package testutils provides test helpers for exercising Blobstore
// implementations, most notably FaultStore, an error-injecting
// decorator used to simulate remote-store failures on specific
// operations and keys.
package testutils
