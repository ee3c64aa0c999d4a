package config

// DefaultOverridePaths are the workspace-relative candidates checked,
// in order, for a custom-script override. The first that exists wins.
var DefaultOverridePaths = []string{
	"assets/custom.js",
	"assets/js/custom.js",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:               7310,
		Workspace:          ".",
		DataDir:            ".simview",
		SimURL:             "/bundle/simulator.js",
		TargetConfigFile:   "targetconfig.json",
		WebConfigFile:      "webconfig.json",
		OverridePaths:      DefaultOverridePaths,
		SerialHistoryLimit: 1000,
		MirrorSerial:       true,
	}
}
