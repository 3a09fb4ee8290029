// Package registry provides the module factory.
//
// The Registry maps descriptors (name + version) to the Go constructors that
// build module implementations. The network never constructs a module
// directly: it asks the registry, and an unregistered descriptor is reported
// as an unknown module type.
//
// During application startup the registry is populated by every plug-in
// package and then validated, so a module that declares impossible ports or
// duplicate parameters is caught before any network is built.
package registry
