// Package http provides the REST client used by connectors that talk to
// platform HTTP APIs (for example the schema registry).
//
// Structure:
//
//	client.go - rate-limited client with retry and JSON decoding
//	auth.go   - authentication strategies (Basic, Bearer, API key)
//	config.go - client configuration from recipe maps
package http
