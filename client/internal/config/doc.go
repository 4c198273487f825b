// Package config loads and watches the polling client configuration
// (the `client:` section of config.yaml).
//
// Top-level types:
//   - Config{Client} — full config tree parsed from YAML
//   - ClientConfig — relay_url, users, poll_interval, poll_timeout,
//     max_concurrent_polls, health_interval, buffer_size
//
// Load(path) reads the YAML file, applies defaults (2s poll interval, 5s poll
// timeout, users user1..user3), overlays RELAY_URL from the environment, then
// validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. A reload that fails to parse or
// validate is logged and the previous config stays active.
package config
