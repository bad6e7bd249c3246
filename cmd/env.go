package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// EnvCommand returns the env command, which reports the environment
// variables DocSync reads and whether they are set.
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Check environment configuration",
		Action: func(c *cli.Context) error {
			PrintEnvCheck(CheckEnv())
			return nil
		},
	}
}

// EnvCheckResult holds the result of environment validation
type EnvCheckResult struct {
	Missing  []string          // Recommended variables that are missing
	Present  map[string]string // Variables that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// CheckEnv inspects the environment variables DocSync uses.
func CheckEnv() *EnvCheckResult {
	result := &EnvCheckResult{
		Missing: []string{},
		Present: make(map[string]string),
	}

	// Recommended: without a database, sessions do not survive restarts
	// and sync jobs run inline instead of queued.
	recommendedVars := []string{
		"DATABASE_URL",
	}
	for _, v := range recommendedVars {
		val := os.Getenv(v)
		if val == "" {
			result.Missing = append(result.Missing, v)
		} else {
			result.Present[v] = maskSecret(val)
		}
	}

	// Config overrides worth surfacing when set
	optionalVars := []string{
		"DOCSYNC_GENERAL__DEFAULT_HOST",
		"DOCSYNC_GENERAL__DEFAULT_AI",
		"DOCSYNC_SERVER__PORT",
		"DOCSYNC_SERVER__WEBHOOK_SECRET",
	}
	for _, v := range optionalVars {
		val := os.Getenv(v)
		if val != "" {
			result.Present[v] = maskSecret(val)
		}
	}

	if os.Getenv("DATABASE_URL") == "" {
		result.Warnings = append(result.Warnings, "pending approvals will be lost on restart without DATABASE_URL")
	}

	return result
}

// PrintEnvCheck prints the environment check results
func PrintEnvCheck(result *EnvCheckResult) {
	fmt.Println("=== Environment Check ===")

	if len(result.Missing) > 0 {
		fmt.Println("❌ Missing recommended variables:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		fmt.Println("✓ Configured variables:")
		for k, v := range result.Present {
			fmt.Printf("   - %s = %s\n", k, v)
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("⚠ Warning: %s\n", w)
	}

	if len(result.Missing) == 0 {
		fmt.Println("✓ All recommended configuration is present")
	}

	fmt.Println("=========================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
