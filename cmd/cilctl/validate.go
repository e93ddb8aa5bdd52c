package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil/assembly"
	"github.com/pmikstacki/cilkit/cil/verify"
)

var validatePreset string

func init() {
	cmd := newValidateCmd()
	cmd.Flags().StringVar(&validatePreset, "preset", "",
		"Validation preset (minimal, production, comprehensive, strict, disabled)")
	rootCmd.AddCommand(cmd)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <assembly>",
		Short: "Validate assembly metadata against a preset",
		Long: `The validate command opens a .NET assembly and runs the validation
engine over it, reporting every validator with its outcome and
duration.

Presets:
  minimal       - Basic operation checks only
  production    - Structural and integrity checks (default)
  comprehensive - Everything production runs plus reference scans
  strict        - Comprehensive with hard caps
  disabled      - Skip validation entirely

The default preset comes from the config file when present.

Example:
  cilctl validate app.dll
  cilctl validate app.dll --preset strict
  cilctl validate app.dll --json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
}

func runValidate(args []string) error {
	path := args[0]

	preset := validatePreset
	if preset == "" {
		preset = configString(cfgKeyPreset, defaultPreset)
	}
	verifyCfg, err := presetConfig(preset)
	if err != nil {
		return err
	}

	printVerbose("Validating assembly: %s (%s preset)\n", path, preset)

	a, err := assembly.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer a.Close()

	res, err := a.Validate(context.Background(), verifyCfg)
	if err != nil {
		return fmt.Errorf("validation did not run: %w", err)
	}

	if jsonOut {
		outcomes := make([]map[string]interface{}, 0, len(res.Outcomes))
		for _, o := range res.Outcomes {
			entry := map[string]interface{}{
				"validator":      o.Validator,
				"ok":             o.OK(),
				"durationMicros": o.Duration.Microseconds(),
			}
			if len(o.Violations) > 0 {
				msgs := make([]string, 0, len(o.Violations))
				for _, viol := range o.Violations {
					msgs = append(msgs, viol.String())
				}
				entry["violations"] = msgs
			}
			outcomes = append(outcomes, entry)
		}
		result := map[string]interface{}{
			"file":           path,
			"preset":         preset,
			"valid":          res.OK(),
			"validators":     outcomes,
			"durationMicros": res.Duration.Microseconds(),
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("%d of %d validators failed", len(res.Failures()), res.ValidatorCount())
		}
		return nil
	}

	printInfo("\nValidating %s (%s preset)...\n\n", path, preset)
	for _, o := range res.Outcomes {
		if o.OK() {
			printInfo("  ✓ %s (%s)\n", o.Validator, o.Duration)
			continue
		}
		printInfo("  ✗ %s (%s)\n", o.Validator, o.Duration)
		for _, viol := range o.Violations {
			printInfo("      %s\n", viol.String())
		}
	}

	if !res.OK() {
		printInfo("\nResult: ✗ INVALID\n")
		return fmt.Errorf("%d of %d validators failed", len(res.Failures()), res.ValidatorCount())
	}

	printInfo("\nResult: ✓ VALID\n")
	return nil
}

// presetConfig maps a preset name to its validation config.
func presetConfig(name string) (verify.Config, error) {
	switch name {
	case "minimal":
		return verify.Minimal(), nil
	case "production":
		return verify.Production(), nil
	case "comprehensive":
		return verify.Comprehensive(), nil
	case "strict":
		return verify.Strict(), nil
	case "disabled":
		return verify.Disabled(), nil
	default:
		return verify.Config{}, usageErrorf(
			"unknown preset: %s (must be minimal, production, comprehensive, strict, or disabled)", name)
	}
}
