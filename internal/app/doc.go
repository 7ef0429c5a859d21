// Package app contains the application services: the local quote store,
// the synchronizer that reconciles it with the remote source, and the
// scheduler that drives periodic cycles.
//
// Services depend on ports only. HTTP, CLI and storage specifics live in
// adapters; merge and conflict rules live in the domain.
package app
