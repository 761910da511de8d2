// Package file loads the atlas configuration from a TOML file. The
// result is an immutable snapshot: changing the file requires a restart,
// and nothing in the process mutates configuration at runtime.
package file
