package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// DefaultConfigFile is where the wizard writes its result.
const DefaultConfigFile = ".simview.yml"

// detectBundleDir checks for a dropped-in simulator bundle in the
// conventional locations.
func detectBundleDir() string {
	for _, dir := range []string{"sim/built", "built/sim", "node_modules/.sim/built"} {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	return ""
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .simview.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to simview! Let's configure your project.")
	fmt.Println()

	cfg := DefaultConfig()

	if dir := detectBundleDir(); dir != "" {
		fmt.Printf("Detected simulator bundle at: %s\n\n", dir)
		cfg.BundleDir = dir
	}

	// 1. Panel port.
	portPrompt := promptui.Prompt{
		Label:   "Panel server port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 2. Workspace root.
	workspacePrompt := promptui.Prompt{
		Label:   "Workspace root",
		Default: cfg.Workspace,
	}
	if cfg.Workspace, err = workspacePrompt.Run(); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	// 3. Bundle directory.
	bundlePrompt := promptui.Prompt{
		Label:   "Simulator bundle directory (empty for built-in)",
		Default: cfg.BundleDir,
	}
	if cfg.BundleDir, err = bundlePrompt.Run(); err != nil {
		return nil, fmt.Errorf("bundle dir: %w", err)
	}

	// 4. Custom-script override candidates.
	overridePrompt := promptui.Prompt{
		Label:   "Custom script override paths (comma-separated, globs allowed)",
		Default: strings.Join(cfg.OverridePaths, ","),
	}
	overrideStr, err := overridePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("override paths: %w", err)
	}
	cfg.OverridePaths = splitAndTrim(overrideStr)

	// 5. Serial mirroring.
	mirrorPrompt := promptui.Select{
		Label: "Mirror serial output to the terminal",
		Items: []string{"yes", "no"},
	}
	mirrorIdx, _, err := mirrorPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("serial mirroring: %w", err)
	}
	cfg.MirrorSerial = mirrorIdx == 0

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := cfg.Save(DefaultConfigFile); err != nil {
		return nil, err
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", DefaultConfigFile)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace,
// dropping empty entries.
func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
