// Package configx layers configuration sources onto a settings struct:
// flag defaults, an optional file named by --config, environment
// variables and finally flags set explicitly on the command line.
package configx

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigFlag names the flag holding the optional config file path.
const ConfigFlag = "config"

// EnvPrefix is prepended to every environment key, MARINELOG_SERVER_URL
// for the "server-url" flag.
const EnvPrefix = "MARINELOG"

// AddConfigFlag registers -c/--config on fs.
func AddConfigFlag(fs *pflag.FlagSet) {
	if fs.Lookup(ConfigFlag) == nil {
		fs.StringP(ConfigFlag, "c", "", "path to a JSON or YAML config file")
	}
}

// Key maps a flag name to its file/env key.
func Key(flagName string) string {
	return strings.ReplaceAll(flagName, "-", "_")
}

// Load fills out from the sources registered on fs. Every flag on fs is a
// config key; out's mapstructure tags must use the same names with
// underscores.
func Load(fs *pflag.FlagSet, out any) error {
	v := viper.New()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == ConfigFlag || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(Key(f.Name), f)
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString(ConfigFlag); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}
