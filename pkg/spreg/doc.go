// Package spreg defines the public contracts of the service provider
// metadata registry: the versioned ServiceProvider model and its child
// records, the field-group table that drives history tracking, the Store
// abstraction the registry runs on, and the sentinel errors and exit codes
// shared by the CLI.
//
// Implementations live under internal/. Callers outside the module only
// need this package to build tooling around a registry store.
package spreg
