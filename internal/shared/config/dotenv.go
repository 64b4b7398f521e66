package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// loadEnvFiles registers KEY=VALUE pairs from the given files as defaults on v,
// so both the process environment and docflow.yaml take precedence.
// It is a best-effort helper for local development; errors are ignored.
func loadEnvFiles(v *viper.Viper, paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		envFile := viper.New()
		envFile.SetConfigFile(path)
		envFile.SetConfigType("env")
		if err := envFile.ReadInConfig(); err != nil {
			continue
		}
		for _, key := range envFile.AllKeys() {
			if v.InConfig(key) {
				continue
			}
			v.SetDefault(strings.ToLower(key), envFile.Get(key))
		}
	}
}
