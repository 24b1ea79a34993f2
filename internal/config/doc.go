// Package config loads the desklab TOML configuration file.
//
// # Configuration File
//
// The default location is /etc/desklab/desklab.toml. Every key is optional:
//
//	listen_addr = ":8080"
//	relay_addr = ":6080"
//	state_dir = "/var/lib/desklab"
//	display_port = 6081
//	container_prefix = "desklab-"
//	rotate_timeout = "10s"
//
//	[port_range]
//	from = 6000
//	to = 6999
//
//	[runtime]
//	command = "docker"
//
//	[store]
//	backend = "file"         # file, image, redis, postgres, memory
//	path = "/var/lib/desklab/documents"
//	registry_ref = "dockerlabconfig:container"
//	users_ref = "dockerlabconfig:auth"
//
//	[relay]
//	rate_limit = 5.0
//	burst = 10
//
// # Name Validation
//
// User names, session ids and image tags are checked with ValidateUserName,
// ValidateSessionID and ValidateImageTag before they reach the container
// runtime.
package config
