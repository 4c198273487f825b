// Package config loads the relay server configuration from the `server:`
// section of config.yaml (the `client:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort             — port for the relay HTTP surface (default 3001)
//   - Answers.MaxAge       — eviction age of an unclaimed answer (default 60s)
//   - Answers.ReapInterval — how often the reaper runs (default 30s)
//   - StreamInterval       — WebSocket health stream period (default 5s)
//   - CORS.AllowedOrigins  — origins echoed in CORS responses (default ["*"])
//
// Load(path) applies defaults before unmarshalling, then environment
// overrides (WEBHOOK_PORT), then validates. An empty path yields the
// defaults plus overrides.
package config
