package sling

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// the persisted local state is one token string under a fixed key, read at
// session start. an absent or empty value means logged out.

type credentialsFile struct {
	JwtToken string `yaml:"jwt_token"`
}

func credentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sling", "credentials.yaml"), nil
}

// LoadToken returns the persisted token, or "" when none is stored
func LoadToken() (string, error) {
	path, err := credentialsPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	credentials := &credentialsFile{}
	if err := yaml.Unmarshal(data, credentials); err != nil {
		return "", err
	}
	return credentials.JwtToken, nil
}

func SaveToken(token string) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&credentialsFile{
		JwtToken: token,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func ClearToken() error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
