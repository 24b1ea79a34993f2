// Package lifecycle runs session operations against the container runtime
// and keeps the session registry in step with them.
//
// A session moves from launch to running, may have its credential rotated,
// be rebooted or reset in place, and ends either saved as an image or
// destroyed. Reset keeps the session id and host port. Every operation
// records an audit event and Prometheus metrics.
//
// Reconcile compares the registry against labelled containers and repairs
// drift left by crashes or out-of-band container removal.
package lifecycle
