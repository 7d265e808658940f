// Package config loads the logdeck TOML configuration.
//
// # Resolution
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/logdeck/config.toml
//  3. If the file doesn't exist, use the built-in defaults
//  4. Keys missing from the file keep their defaults
//
// Invalid TOML and unparseable durations are errors. Numbers outside their
// valid range are replaced by the default rather than rejected.
//
// # TOML Format
//
//	log_level = "info"          # debug|info|warn|error
//	log_format = "text"         # text|json
//	log_file = "~/.local/state/logdeck/logdeck.log"
//
//	[store]
//	max_entries = 100000
//	trim_threshold = 0.95
//	trim_target = 0.9
//
//	[dispatch]
//	queue_cap = 50000
//	batch_size = 1000
//	flush_interval = "100ms"
//	slow_delivery = "150ms"
//	liveness_interval = "1s"
//	stall_multiple = 2.0
//
//	[listen]
//	addr = "127.0.0.1:7700"     # empty disables the listener
//
//	[poll]
//	url = "http://127.0.0.1:7487/api/logs"
//	interval = "2s"
//
//	[files]
//	paths = ["~/logs/**/*.log"]
//	tail_lines = 1000
//	follow = true
//
//	[kafka]
//	brokers = ["localhost:9092"]
//	topic = "logs"
//	group = "logdeck"
//
// Every producer section is optional; a producer runs only when its
// section names something to read from.
//
// # Path Expansion
//
// log_file and files.paths accept a leading "~", which expands to the
// user's home directory, and are made absolute.
package config
