package strategyconfig

import "time"

// Config is a file of named scan presets
type Config struct {
	Version  int      `yaml:"version" json:"version"`
	Defaults Defaults `yaml:"defaults" json:"defaults"`
	Presets  []Preset `yaml:"presets" json:"presets"`
}

// Defaults fill fields a preset leaves empty
type Defaults struct {
	Period   string `yaml:"period" json:"period"`
	Universe string `yaml:"universe" json:"universe"`
	MaxCount int    `yaml:"max_count" json:"max_count"`
}

// Preset is a reusable scan definition
type Preset struct {
	Name         string         `yaml:"name" json:"name"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Strategy     string         `yaml:"strategy" json:"strategy"`
	Period       string         `yaml:"period,omitempty" json:"period,omitempty"`
	Universe     string         `yaml:"universe,omitempty" json:"universe,omitempty"` // us-all, nasdaq, nyse, sp500, custom
	UniverseFile string         `yaml:"universe_file,omitempty" json:"universe_file,omitempty"`
	Symbols      []string       `yaml:"symbols,omitempty" json:"symbols,omitempty"`
	MaxCount     int            `yaml:"max_count,omitempty" json:"max_count,omitempty"`
	Params       map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Schedule     string         `yaml:"schedule,omitempty" json:"schedule,omitempty"` // cron, seconds optional
	Export       *Export        `yaml:"export,omitempty" json:"export,omitempty"`
}

// Export writes scheduled scan output to disk
type Export struct {
	Dir    string `yaml:"dir" json:"dir"`
	Format string `yaml:"format" json:"format"` // json or csv
}

// Snapshot pins the preset file a scan ran with
type Snapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	Preset     string    `json:"preset"`
	CreatedAt  time.Time `json:"created_at"`
}

// Preset returns the named preset with defaults applied
func (c *Config) Preset(name string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return c.withDefaults(p), true
		}
	}
	return Preset{}, false
}

// Scheduled returns presets with a schedule, defaults applied
func (c *Config) Scheduled() []Preset {
	var out []Preset
	for _, p := range c.Presets {
		if p.Schedule != "" {
			out = append(out, c.withDefaults(p))
		}
	}
	return out
}

func (c *Config) withDefaults(p Preset) Preset {
	if p.Period == "" {
		p.Period = c.Defaults.Period
	}
	if p.Period == "" {
		p.Period = "1y"
	}
	if p.Universe == "" && len(p.Symbols) == 0 {
		p.Universe = c.Defaults.Universe
	}
	if p.MaxCount == 0 {
		p.MaxCount = c.Defaults.MaxCount
	}
	return p
}
