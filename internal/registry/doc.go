// Package registry tracks which session belongs to which user, on which
// host port, with which display credential.
//
// The persisted document looks like:
//
//	{"alice": {"c1": {"port": 6000, "vnckey": "s3cret"}}}
//
// List serves a cached snapshot for page rendering. GetFresh, Ports and All
// always reload from the store and are used where staleness matters: token
// resolution, port allocation and reconciliation.
package registry
