// Package api wires the key service HTTP API: POST /api/generate-key and
// POST /api/verify-key, plus health, metrics and static assets.
package api
