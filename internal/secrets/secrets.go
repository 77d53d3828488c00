// Package secrets resolves secret values from the environment, with support
// for the Docker secrets convention: KEY_FILE pointing at a file on disk
// takes precedence over KEY itself.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Get resolves a secret. Resolution order: KEY_FILE file contents, then the
// KEY environment variable, then the default.
func Get(envKey, defaultValue string) (string, error) {
	if filePath := os.Getenv(envKey + "_FILE"); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read secret file %s: %w", filePath, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if value := os.Getenv(envKey); value != "" {
		return value, nil
	}

	return defaultValue, nil
}

// GetOptionalSecret resolves a secret, falling back to the default on any
// error. For secrets the application can run without.
func GetOptionalSecret(envKey, defaultValue string) string {
	value, err := Get(envKey, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}
