package repo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	rootPathEnvVar = "DAICO_PATH"

	envPrefix = "DAICO"

	cfgFileName = "daico.toml"

	defaultRepoRoot = "~/.daico"

	LogsDirName = "logs"

	StorageDirName = "storage"

	DefaultOwnerAddr = "0x0000000000000000000000000000000000001001"
)

// Repo is a daico home directory: daico.toml, the ledger storage and the logs.
type Repo struct {
	Config *Config
}

// RootPath resolves the repo root from p, then DAICO_PATH, then ~/.daico.
func RootPath(p string) (string, error) {
	if p != "" {
		return p, nil
	}
	if p = os.Getenv(rootPathEnvVar); p != "" {
		return p, nil
	}
	return homedir.Expand(defaultRepoRoot)
}

// Initialized reports whether root already holds a daico.toml.
func Initialized(root string) bool {
	_, err := os.Stat(filepath.Join(root, cfgFileName))
	return err == nil
}

// Init lays out a new repo at config.RepoRoot and writes config into it.
func Init(config *Config) (*Repo, error) {
	if err := config.Check(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if err := prepareDirs(config.RepoRoot); err != nil {
		return nil, err
	}

	r := &Repo{Config: config}
	if err := r.Flush(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads the repo at root, initializing it with the default config when
// there is none yet. DAICO_* environment variables override the file.
func Load(root string) (*Repo, error) {
	root, err := RootPath(root)
	if err != nil {
		return nil, err
	}
	if !Initialized(root) {
		return Init(DefaultConfig(root))
	}
	if err := prepareDirs(root); err != nil {
		return nil, err
	}

	cfg := DefaultConfig(root)
	if err := readConfig(filepath.Join(root, cfgFileName), cfg); err != nil {
		return nil, err
	}
	return &Repo{Config: cfg}, nil
}

// StoragePath is the leveldb directory holding the ledger state.
func (r *Repo) StoragePath() string {
	return filepath.Join(r.Config.RepoRoot, StorageDirName)
}

// Flush writes the config with the environment overrides folded in.
func (r *Repo) Flush() error {
	cfgPath := filepath.Join(r.Config.RepoRoot, cfgFileName)
	if err := writeConfig(cfgPath, r.Config); err != nil {
		return errors.Wrap(err, "failed to write config")
	}
	if err := readConfig(cfgPath, r.Config); err != nil {
		return errors.Wrap(err, "failed to read config from environment")
	}
	if err := writeConfig(cfgPath, r.Config); err != nil {
		return errors.Wrap(err, "failed to write config")
	}
	return nil
}

func MarshalConfig(config *Config) (string, error) {
	buf := bytes.NewBuffer([]byte{})
	e := toml.NewEncoder(buf)
	e.SetIndentTables(true)
	e.SetArraysMultiline(true)
	if err := e.Encode(config); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeConfig(cfgPath string, config *Config) error {
	raw, err := MarshalConfig(config)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, []byte(raw), 0644)
}

func readConfig(cfgPath string, config *Config) error {
	vp := viper.New()
	vp.SetConfigFile(cfgPath)
	vp.SetConfigType("toml")
	vp.AutomaticEnv()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := vp.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read %s", cfgPath)
	}
	return vp.Unmarshal(config)
}

// prepareDirs creates the repo layout and makes sure the current user can write to it.
func prepareDirs(root string) error {
	for _, dir := range []string{root, filepath.Join(root, LogsDirName), filepath.Join(root, StorageDirName)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}

	f, err := os.CreateTemp(root, ".writable-")
	if err != nil {
		return errors.Wrapf(err, "%s is not writable by the current user", root)
	}
	_ = f.Close()
	return os.Remove(f.Name())
}
