package oras

import (
	"context"
	"errors"
	"net"
	"slices"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

// dockerHubAliases are the server addresses Docker Hub credentials may be
// stored under.
var dockerHubAliases = []string{
	"https://index.docker.io/v1/",
	"index.docker.io",
	"registry-1.docker.io",
	"docker.io",
}

// DockerCredentialStore returns a store backed by a Docker config file and
// its credential helpers. An empty path uses the default Docker location.
func DockerCredentialStore(path string) (credentials.Store, error) {
	var (
		store credentials.Store
		err   error
	)
	if path == "" {
		store, err = credentials.NewStoreFromDocker(credentials.StoreOptions{})
	} else {
		store, err = credentials.NewStore(path, credentials.StoreOptions{})
	}
	if err != nil {
		return nil, err
	}
	return &aliasStore{store: store}, nil
}

// StaticCredentials returns a read-only store holding one username and
// password for registry.
func StaticCredentials(registry, username, password string) credentials.Store {
	return &staticStore{
		registry: serverHost(registry),
		cred:     auth.Credential{Username: username, Password: password},
	}
}

// StaticToken returns a read-only store holding one bearer token for
// registry.
func StaticToken(registry, token string) credentials.Store {
	return &staticStore{
		registry: serverHost(registry),
		cred:     auth.Credential{AccessToken: token},
	}
}

type staticStore struct {
	registry string
	cred     auth.Credential
}

func (s *staticStore) Get(_ context.Context, serverAddress string) (auth.Credential, error) {
	server := serverHost(serverAddress)
	if server == s.registry || (isDockerHub(server) && isDockerHub(s.registry)) {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (s *staticStore) Put(context.Context, string, auth.Credential) error {
	return errors.New("oras: static credential store is read-only")
}

func (s *staticStore) Delete(context.Context, string) error {
	return errors.New("oras: static credential store is read-only")
}

// aliasStore retries Docker Hub lookups under the hub's other addresses.
type aliasStore struct {
	store credentials.Store
}

func (s *aliasStore) Get(ctx context.Context, serverAddress string) (auth.Credential, error) {
	cred, err := s.store.Get(ctx, serverAddress)
	if err == nil && !isEmptyCredential(cred) {
		return cred, nil
	}
	if isDockerHub(serverHost(serverAddress)) {
		for _, alias := range dockerHubAliases {
			if alias == serverAddress {
				continue
			}
			if c, aerr := s.store.Get(ctx, alias); aerr == nil && !isEmptyCredential(c) {
				return c, nil
			}
		}
	}
	return cred, err
}

func (s *aliasStore) Put(ctx context.Context, serverAddress string, cred auth.Credential) error {
	return s.store.Put(ctx, serverAddress, cred)
}

func (s *aliasStore) Delete(ctx context.Context, serverAddress string) error {
	return s.store.Delete(ctx, serverAddress)
}

// serverHost strips scheme and path from a server address, keeping the port.
func serverHost(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr, _, _ = strings.Cut(addr, "/")
	return addr
}

func isDockerHub(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	return slices.Contains([]string{"docker.io", "registry-1.docker.io", "index.docker.io"}, host)
}

func isEmptyCredential(cred auth.Credential) bool {
	return cred.Username == "" && cred.Password == "" && cred.AccessToken == "" && cred.RefreshToken == ""
}
