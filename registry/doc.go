// Package registry distributes mod files as OCI artifacts.
//
// A mod is pushed as an image manifest with an empty config and a single
// layer holding the encoded mod file. Manifest annotations carry the mod's
// name, author, version, kind and entry count so Fetch can describe a mod
// without downloading it. Pull verifies the layer digest before parsing.
//
// The oras subpackage implements the low-level OCI operations.
package registry
