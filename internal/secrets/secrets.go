package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotSet is returned by Required when neither KEY nor KEY_FILE is set
var ErrNotSet = errors.New("secret not set")

// Get reads a secret from KEY_FILE (Docker secrets) or KEY, falling back to defaultValue
func Get(key, defaultValue string) (string, error) {
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read secret file %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	return defaultValue, nil
}

// Required reads a secret that must be present
func Required(key string) (string, error) {
	value, err := Get(key, "")
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%s: %w", key, ErrNotSet)
	}
	return value, nil
}

// Optional reads a secret and never fails; unreadable files yield defaultValue
func Optional(key, defaultValue string) string {
	value, err := Get(key, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}
