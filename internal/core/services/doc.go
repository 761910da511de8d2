// Package services implements the driving port interfaces.
// Services contain the core ingestion and diff logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no external dependencies beyond ID
// generation, hashing and diff rendering.
package services
