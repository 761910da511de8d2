// Package api exposes the snapshot service over HTTP. It is a thin
// driving adapter: request decoding, domain error mapping and response
// shaping, with no ingestion logic of its own.
package api
