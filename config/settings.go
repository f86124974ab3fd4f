package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// SettingsFile is the default settings file name.
const SettingsFile = "modkit.ini"

// Settings are the tool settings kept in modkit.ini.
type Settings struct {
	// InstallDir is the game install folder archive paths are relative to.
	InstallDir string
	// LedgerDir holds one ledger per game.
	LedgerDir string
	// Profiles is a YAML or .ref profile file.
	Profiles string
	// Game selects the profile id.
	Game string
	// ForceUncompressed writes a zero compression flag on apply.
	ForceUncompressed bool
	// AnomalyLog is the anomaly log path. Empty means anomalies.log in
	// the ledger directory.
	AnomalyLog string

	Registry RegistrySettings
}

// RegistrySettings configure mod distribution.
type RegistrySettings struct {
	PlainHTTP    bool
	DockerConfig string
}

// DefaultSettingsPath returns modkit.ini in the user config directory.
func DefaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "modkit", SettingsFile), nil
}

// DefaultLedgerDir returns the ledger directory used when none is set.
func DefaultLedgerDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "modkit", "ledger"), nil
}

// LoadSettings reads settings from path. A missing file yields zero
// settings and no error.
func LoadSettings(path string) (Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Settings{}, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settingsFrom(f)
}

// ParseSettings reads settings from memory.
func ParseSettings(data []byte) (Settings, error) {
	f, err := ini.Load(data)
	if err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return settingsFrom(f)
}

func settingsFrom(f *ini.File) (Settings, error) {
	root := f.Section("")
	s := Settings{
		InstallDir: root.Key("install_dir").String(),
		LedgerDir:  root.Key("ledger_dir").String(),
		Profiles:   root.Key("profiles").String(),
		Game:       root.Key("game").String(),
		AnomalyLog: root.Key("anomaly_log").String(),
	}
	var err error
	if s.ForceUncompressed, err = boolKey(root, "force_uncompressed"); err != nil {
		return Settings{}, err
	}
	reg := f.Section("registry")
	if s.Registry.PlainHTTP, err = boolKey(reg, "plain_http"); err != nil {
		return Settings{}, err
	}
	s.Registry.DockerConfig = reg.Key("docker_config").String()
	return s, nil
}

func boolKey(sec *ini.Section, name string) (bool, error) {
	if !sec.HasKey(name) || sec.Key(name).String() == "" {
		return false, nil
	}
	v, err := sec.Key(name).Bool()
	if err != nil {
		return false, fmt.Errorf("settings: %s: %w", name, err)
	}
	return v, nil
}

// Save writes s to path atomically, creating parent directories.
func (s Settings) Save(path string) error {
	f := ini.Empty()
	root := f.Section("")
	root.Key("install_dir").SetValue(s.InstallDir)
	root.Key("ledger_dir").SetValue(s.LedgerDir)
	root.Key("profiles").SetValue(s.Profiles)
	root.Key("game").SetValue(s.Game)
	root.Key("force_uncompressed").SetValue(fmt.Sprint(s.ForceUncompressed))
	root.Key("anomaly_log").SetValue(s.AnomalyLog)
	reg := f.Section("registry")
	reg.Key("plain_http").SetValue(fmt.Sprint(s.Registry.PlainHTTP))
	reg.Key("docker_config").SetValue(s.Registry.DockerConfig)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// Merge returns s with every zero field taken from fallback.
func (s Settings) Merge(fallback Settings) Settings {
	if s.InstallDir == "" {
		s.InstallDir = fallback.InstallDir
	}
	if s.LedgerDir == "" {
		s.LedgerDir = fallback.LedgerDir
	}
	if s.Profiles == "" {
		s.Profiles = fallback.Profiles
	}
	if s.Game == "" {
		s.Game = fallback.Game
	}
	if s.AnomalyLog == "" {
		s.AnomalyLog = fallback.AnomalyLog
	}
	s.ForceUncompressed = s.ForceUncompressed || fallback.ForceUncompressed
	s.Registry.PlainHTTP = s.Registry.PlainHTTP || fallback.Registry.PlainHTTP
	if s.Registry.DockerConfig == "" {
		s.Registry.DockerConfig = fallback.Registry.DockerConfig
	}
	return s
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".modkit-*.ini")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
