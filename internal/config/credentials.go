package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Credentials authenticate against the leaderboard API.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

func (c Credentials) complete() bool {
	return c.Username != "" && c.Key != ""
}

// ResolveCredentials looks for API credentials in order: the config itself
// (kaggle_username, kaggle_key), the KAGGLE_USERNAME and KAGGLE_KEY
// variables, then kaggle.json in $KAGGLE_CONFIG_DIR or ~/.kaggle.
func ResolveCredentials(cfg *Config) (Credentials, error) {
	c := Credentials{
		Username: strings.TrimSpace(cfg.KaggleUsername),
		Key:      strings.TrimSpace(cfg.KaggleKey),
	}
	if c.complete() {
		return c, nil
	}

	c = Credentials{
		Username: strings.TrimSpace(os.Getenv("KAGGLE_USERNAME")),
		Key:      strings.TrimSpace(os.Getenv("KAGGLE_KEY")),
	}
	if c.complete() {
		return c, nil
	}

	path := kaggleJSONPath()
	if path == "" {
		return Credentials{}, ErrCredentialMissing
	}
	c, err := readKaggleJSON(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrCredentialMissing, err)
	}
	if !c.complete() {
		return Credentials{}, fmt.Errorf("%w: %s is incomplete", ErrCredentialMissing, path)
	}
	return c, nil
}

func kaggleJSONPath() string {
	if dir := os.Getenv("KAGGLE_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "kaggle.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kaggle", "kaggle.json")
}

func readKaggleJSON(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("%s: %w", path, err)
	}
	c.Username, c.Key = strings.TrimSpace(c.Username), strings.TrimSpace(c.Key)
	return c, nil
}
