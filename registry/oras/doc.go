// Package oras implements registry.OCIClient on top of the ORAS library.
//
// Client pushes and fetches blobs and manifests, resolves and creates tags,
// and authenticates through a shared auth client with a token cache and
// retrying transport. Credentials come from a static credential, a bearer
// token, or a Docker config file and its credential helpers.
package oras
