package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alnah/go-voicepipe/internal/config"
)

// defaultRoot is the project root when paths.root is not configured.
const defaultRoot = "~/voicepipe"

// configDirEnv overrides the configuration directory lookup entirely.
const configDirEnv = "VOICEPIPE_CONFIG_DIR"

// resolveConfigDir picks the configuration directory: the --config flag
// wins, then the override environment variable, then ~/.config/voicepipe.
func resolveConfigDir(flag string, getenv func(string) string) string {
	if flag != "" {
		return config.ExpandPath(flag)
	}
	if dir := getenv(configDirEnv); dir != "" {
		return config.ExpandPath(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voicepipe"
	}
	return filepath.Join(home, ".config", "voicepipe")
}

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	var (
		configDir string
		reload    bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage the layered configuration.

Values merge from the configuration directory over built-in defaults:
settings.yaml at the root, plus projects, patterns, durations, icons,
and prompts as namespaced layers. Any dotted key can be overridden with
its UPPER_SNAKE_CASE environment variable (transcribe.workers ->
TRANSCRIBE_WORKERS).

Only settings.yaml is written by "config set"; the namespaced layers
are edited by hand.`,
		Example: `  voicepipe config get transcribe.workers
  voicepipe config set paths.usb /media/usb/RECORDER
  voicepipe config list
  voicepipe config path`,
	}

	cmd.PersistentFlags().StringVar(&configDir, "config", "", "Configuration directory (default: ~/.config/voicepipe)")
	cmd.PersistentFlags().BoolVar(&reload, "reload", false, "Re-read every layer before running (sanity check)")

	cmd.AddCommand(configGetCmd(env, &configDir, &reload))
	cmd.AddCommand(configSetCmd(env, &configDir, &reload))
	cmd.AddCommand(configListCmd(env, &configDir, &reload))
	cmd.AddCommand(configPathCmd(env, &configDir))

	return cmd
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env, configDir *string, reload *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value by dotted key.

Prints the resolved value to stdout, or nothing when the key is absent
from every layer. Environment overrides win over file values.`,
		Example: `  voicepipe config get transcribe.workers
  voicepipe config get kb.collections.tasks`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, *configDir, *reload, args[0])
		},
	}
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env, configDir *string, reload *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a dotted key in settings.yaml.

The value is stored as a number or boolean when it parses as one, and
as a string otherwise. The settings file is rewritten atomically.`,
		Example: `  voicepipe config set paths.usb /media/usb/RECORDER
  voicepipe config set transcribe.workers 5
  voicepipe config set transcribe.backend local`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, *configDir, *reload, args[0], args[1])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env, configDir *string, reload *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List every resolved configuration key in sorted order.

Active environment overrides are marked, since they shadow whatever is
in the files.`,
		Example: `  voicepipe config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env, *configDir, *reload)
		},
	}
}

// configPathCmd creates the "config path" subcommand.
func configPathCmd(env *Env, configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:     "path",
		Short:   "Print the configuration directory",
		Example: `  voicepipe config path`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(env.Stdout, resolveConfigDir(*configDir, env.Getenv))
			return nil
		},
	}
}

// loadConfigStore loads the store for the config subcommands, honoring
// the --reload sanity check.
func loadConfigStore(env *Env, configDir string, reload bool) (*config.Store, error) {
	cfg, err := env.ConfigLoader.Load(resolveConfigDir(configDir, env.Getenv))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if reload {
		if err := cfg.Reload(); err != nil {
			return nil, fmt.Errorf("failed to reload configuration: %w", err)
		}
		fmt.Fprintln(env.Stderr, "Configuration reloaded.")
	}
	return cfg, nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, configDir string, reload bool, key string) error {
	cfg, err := loadConfigStore(env, configDir, reload)
	if err != nil {
		return err
	}

	if v := cfg.Get(key, nil); v != nil {
		fmt.Fprintf(env.Stdout, "%v\n", v)
	}
	return nil
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, configDir string, reload bool, key, value string) error {
	cfg, err := loadConfigStore(env, configDir, reload)
	if err != nil {
		return err
	}

	if err := cfg.Set(key, parseSettingValue(value)); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env, configDir string, reload bool) error {
	cfg, err := loadConfigStore(env, configDir, reload)
	if err != nil {
		return err
	}

	snap := cfg.Snapshot()
	for _, key := range cfg.Keys() {
		if override := env.Getenv(config.EnvKey(key)); override != "" {
			fmt.Fprintf(env.Stdout, "%s=%s (env override)\n", key, override)
			continue
		}
		fmt.Fprintf(env.Stdout, "%s=%v\n", key, snap[key])
	}
	return nil
}

// parseSettingValue coerces a CLI string into the YAML scalar it reads
// as, so "5" round-trips as a number and "true" as a boolean.
func parseSettingValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
