// Package relay bridges remote-display WebSocket clients to session
// containers.
//
// A client connects to /websockify?token=<user>:<session>. The relay
// resolves the token exactly once against the session registry, reading it
// fresh so a relay running in a separate process sees sessions as soon as
// they are registered or destroyed. Unknown tokens get a 404 before the
// upgrade. Otherwise the relay dials the session's loopback display port
// and copies bytes both ways until either side closes.
//
// # Running the Relay
//
// Inside the API server the relay is mounted on the same echo instance:
//
//	r, err := relay.New(&relay.Config{Resolver: resolver})
//	r.Register(e)
//
// Standalone, it is started with its own listener:
//
//	srv, err := relay.NewServer(&relay.Config{ListenAddr: ":6080", Resolver: resolver})
//	err = srv.Start()
//
// New connections are rate limited per remote IP when RateLimit is set.
package relay
