package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aldnoah/modkit"
	"github.com/aldnoah/modkit/config"
)

// globalFlags override values from modkit.ini.
type globalFlags struct {
	config            string
	game              string
	install           string
	ledger            string
	profiles          string
	anomalyLog        string
	cacheDir          string
	dockerConfig      string
	forceUncompressed bool
	plainHTTP         bool
	verbose           bool
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.config, "config", "", "settings file (default: modkit.ini in the user config dir)")
	fs.StringVar(&g.game, "game", "", "game profile id")
	fs.StringVar(&g.install, "install", "", "game install directory")
	fs.StringVar(&g.ledger, "ledger", "", "ledger directory")
	fs.StringVar(&g.profiles, "profiles", "", "profile file (.yaml or .ref)")
	fs.StringVar(&g.anomalyLog, "anomaly-log", "", "anomaly log file (default: anomalies.log in the ledger dir)")
	fs.StringVar(&g.cacheDir, "cache", "", "registry cache directory")
	fs.StringVar(&g.dockerConfig, "docker-config", "", "Docker config file for registry credentials")
	fs.BoolVar(&g.forceUncompressed, "force-uncompressed", false, "mark applied entries uncompressed")
	fs.BoolVar(&g.plainHTTP, "plain-http", false, "use HTTP for registries")
	fs.BoolVar(&g.verbose, "v", false, "debug logging")
}

// settings returns the flag values as Settings.
func (g *globalFlags) settings() config.Settings {
	return config.Settings{
		InstallDir:        g.install,
		LedgerDir:         g.ledger,
		Profiles:          g.profiles,
		Game:              g.game,
		ForceUncompressed: g.forceUncompressed,
		AnomalyLog:        g.anomalyLog,
		Registry: config.RegistrySettings{
			PlainHTTP:    g.plainHTTP,
			DockerConfig: g.dockerConfig,
		},
	}
}

// env carries per-invocation state shared by commands.
type env struct {
	flags  globalFlags
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	client   *modkit.Client
	closers  []io.Closer
	resolved *config.Settings
}

func (e *env) close() {
	for _, c := range e.closers {
		_ = c.Close() //nolint:errcheck // best-effort on exit
	}
}

func (e *env) settingsPath() (string, error) {
	if e.flags.config != "" {
		return e.flags.config, nil
	}
	return config.DefaultSettingsPath()
}

// settings merges flags over modkit.ini and fills defaults.
func (e *env) settings() (config.Settings, error) {
	if e.resolved != nil {
		return *e.resolved, nil
	}
	path, err := e.settingsPath()
	if err != nil {
		return config.Settings{}, err
	}
	file, err := config.LoadSettings(path)
	if err != nil {
		return config.Settings{}, err
	}
	s := e.flags.settings().Merge(file)
	if s.LedgerDir == "" {
		if s.LedgerDir, err = config.DefaultLedgerDir(); err != nil {
			return config.Settings{}, err
		}
	}
	e.resolved = &s
	return s, nil
}

func (e *env) userProfiles(s config.Settings) ([]config.Profile, error) {
	if s.Profiles == "" {
		return nil, nil
	}
	return config.LoadProfiles(s.Profiles)
}

func (e *env) profile() (config.Profile, error) {
	s, err := e.settings()
	if err != nil {
		return config.Profile{}, err
	}
	if s.Game == "" {
		return config.Profile{}, errors.New("no game selected; pass -game or set game in modkit.ini")
	}
	user, err := e.userProfiles(s)
	if err != nil {
		return config.Profile{}, err
	}
	return config.Lookup(s.Game, user)
}

// modClient builds the client on first use.
func (e *env) modClient() (*modkit.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	s, err := e.settings()
	if err != nil {
		return nil, err
	}
	profile, err := e.profile()
	if err != nil {
		return nil, err
	}
	if s.InstallDir == "" {
		return nil, errors.New("no install directory; pass -install or set install_dir in modkit.ini")
	}

	anomalies, err := e.anomalyLogger(s)
	if err != nil {
		return nil, err
	}

	opts := []modkit.Option{
		modkit.WithLedgerDir(s.LedgerDir),
		modkit.WithLogger(e.logger),
		modkit.WithAnomalyLogger(anomalies),
		modkit.WithForceUncompressed(s.ForceUncompressed),
		modkit.WithPlainHTTP(s.Registry.PlainHTTP),
		modkit.WithDockerConfig(s.Registry.DockerConfig),
	}
	if e.flags.cacheDir != "" {
		opts = append(opts, modkit.WithCacheDir(e.flags.cacheDir))
	}
	c, err := modkit.NewClient(profile, s.InstallDir, opts...)
	if err != nil {
		return nil, err
	}
	e.client = c
	return c, nil
}

// anomalyLogger opens the anomaly log for appending.
func (e *env) anomalyLogger(s config.Settings) (*slog.Logger, error) {
	path := s.AnomalyLog
	if path == "" {
		path = filepath.Join(s.LedgerDir, "anomalies.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create anomaly log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644) //nolint:gosec // log file is not secret
	if err != nil {
		return nil, fmt.Errorf("open anomaly log: %w", err)
	}
	e.closers = append(e.closers, f)
	return slog.New(slog.NewTextHandler(f, nil)), nil
}
