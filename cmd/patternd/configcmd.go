package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patternd/internal/config"
)

// engineKeys maps dotted config.json keys to setters.
var engineKeys = map[string]func(*config.Engine, string) error{
	"capacity.maxPatternsPerScope": intSetter(func(c *config.Engine) *int { return &c.Capacity.MaxPatternsPerScope }),
	"capacity.maxClusters":         intSetter(func(c *config.Engine) *int { return &c.Capacity.MaxClusters }),
	"capacity.maxSessions":         intSetter(func(c *config.Engine) *int { return &c.Capacity.MaxSessions }),
	"decay.algorithm": func(c *config.Engine, v string) error {
		c.Decay.Algorithm = config.DecayAlgorithm(strings.ToLower(v))
		return nil
	},
	"decay.halfLifeDays":               floatSetter(func(c *config.Engine) *float64 { return &c.Decay.HalfLifeDays }),
	"decay.weights.recency":            floatSetter(func(c *config.Engine) *float64 { return &c.Decay.Weights.Recency }),
	"decay.weights.frequency":          floatSetter(func(c *config.Engine) *float64 { return &c.Decay.Weights.Frequency }),
	"decay.weights.successRate":        floatSetter(func(c *config.Engine) *float64 { return &c.Decay.Weights.SuccessRate }),
	"thresholds.dedup":                 floatSetter(func(c *config.Engine) *float64 { return &c.Thresholds.Dedup }),
	"thresholds.cluster":               floatSetter(func(c *config.Engine) *float64 { return &c.Thresholds.Cluster }),
	"eviction.protectFrequency":        intSetter(func(c *config.Engine) *int { return &c.Eviction.ProtectFrequency }),
	"eviction.protectRecentDays":       floatSetter(func(c *config.Engine) *float64 { return &c.Eviction.ProtectRecentDays }),
	"eviction.protectClusterRepresentatives": func(c *config.Engine, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Eviction.ProtectClusterRepresentatives = b
		return nil
	},
}

func intSetter(field func(*config.Engine) *int) func(*config.Engine, string) error {
	return func(c *config.Engine, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatSetter(field func(*config.Engine) *float64) func(*config.Engine, string) error {
	return func(c *config.Engine, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

// setEngineKey applies one key=value change to c.
func setEngineKey(c *config.Engine, key, value string) error {
	set, ok := engineKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(engineKeyNames(), ", "))
	}
	if err := set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func engineKeyNames() []string {
	names := make([]string, 0, len(engineKeys))
	for k := range engineKeys {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the engine configuration (config.json)",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active engine configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.engine.Config())
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Validate and persist one engine configuration value",
		Long: `Validate and persist one engine configuration value. Invalid
values are rejected and config.json is left untouched.

Examples:
  patternd config set capacity.maxPatternsPerScope 200
  patternd config set decay.algorithm exponential`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.engine.UpdateConfig(cmd.Context(), func(c *config.Engine) error {
				return setEngineKey(c, args[0], args[1])
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}

	reload := &cobra.Command{
		Use:   "reload",
		Short: "Re-read config.json from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.engine.ReloadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List keys accepted by config set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, k := range engineKeyNames() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.AddCommand(show, set, reload, keys)
	return cmd
}
