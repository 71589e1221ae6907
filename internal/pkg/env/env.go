package env

import (
	"os"

	"github.com/joho/godotenv"
)

var Env map[string]string

// envFiles are searched in order; the first readable file wins.
var envFiles = []string{
	".env",          // Current directory
	"../../.env",    // From cmd/autoclub to project root
	"../../../.env", // Fallback for deeper nesting
}

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the first .env file found and exports its values to the
// process environment without overriding variables that are already set.
// It returns the path that was loaded, or "" when no file exists; running on
// plain environment variables is fine.
func SetupEnvFile() (string, error) {
	for _, envFile := range envFiles {
		values, err := godotenv.Read(envFile)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return envFile, err
		}

		Env = values
		for k, v := range values {
			if _, set := os.LookupEnv(k); set {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return envFile, err
			}
		}
		return envFile, nil
	}
	return "", nil
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
