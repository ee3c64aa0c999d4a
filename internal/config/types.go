package config

// Config is the top-level simview configuration, corresponding to .simview.yml.
type Config struct {
	Port               int      `yaml:"port" koanf:"port"`
	Workspace          string   `yaml:"workspace" koanf:"workspace"`
	DataDir            string   `yaml:"data_dir" koanf:"data_dir"`
	BundleDir          string   `yaml:"bundle_dir" koanf:"bundle_dir"`
	SimURL             string   `yaml:"sim_url" koanf:"sim_url"`
	TargetConfigFile   string   `yaml:"target_config_file" koanf:"target_config_file"`
	WebConfigFile      string   `yaml:"web_config_file" koanf:"web_config_file"`
	OverridePaths      []string `yaml:"override_paths" koanf:"override_paths"`
	SerialHistoryLimit int      `yaml:"serial_history_limit" koanf:"serial_history_limit"`
	AllowAllOrigins    bool     `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	MirrorSerial       bool     `yaml:"mirror_serial" koanf:"mirror_serial"`
}
