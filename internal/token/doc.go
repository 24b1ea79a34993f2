// Package token resolves relay connection tokens.
//
// A token is "<user>:<session id>", split on the first colon. Resolution
// always goes to the registry store, so a relay running in a separate
// process sees sessions created or destroyed by the API server.
package token
