// Command dozeprobe checks whether a CPU wake hold and a WiFi keep-alive hold
// keep network access alive while the host power manager tries to save power.
//
// Usage:
//
//	dozeprobe [-config dozeprobe.yaml] [-debug] [-dry-run] [-headless [-acquire]]
//
// Flags:
//
//	-config    YAML config file; DOZEPROBE_* environment variables override it
//	-debug     development logging at debug level
//	-dry-run   in-process holds and an always-exempt, always-connected platform
//	-headless  print status lines to stdout instead of the interactive screen
//	-acquire   acquire the holds right away (headless only)
//
// Behavior:
//
// After an acquire, a slow download runs in the background and the WiFi state
// is checked after every chunk. A lost connection is reported as
// "!!! Power saving detected". When api.listen is set the HTTP control plane
// under /v1 is served as well. SIGINT and SIGTERM release the holds and exit.
package main
