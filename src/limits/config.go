package limits

import (
	"os"

	"gopkg.in/yaml.v3"
)

// config_t is the on-disk, partially-specified override for Tunables_t,
// mirroring tinyrange/cc's SiteConfig convention: every field is optional,
// and whatever is absent keeps NewTunables' default.
type config_t struct {
	Freq             *uint64 `yaml:"freq"`
	DefaultQuantum   *uint64 `yaml:"default_quantum"`
	EnablePreemption *bool   `yaml:"enable_preemption"`
	Migration        *string `yaml:"migration"`
	NHarts           *int    `yaml:"n_harts"`
}

// LoadTunables reads tunables from a YAML file, layering them over the
// platform defaults. A missing file is not an error: it returns the
// defaults unchanged, since every tunable already has a sensible value.
func LoadTunables(path string) (*Tunables_t, error) {
	t := NewTunables()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}

	var c config_t
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}

	if c.Freq != nil {
		t.Freq = *c.Freq
		t.ContextSwitchTime = t.Freq / 500
	}
	if c.DefaultQuantum != nil {
		t.DefaultQuantum = *c.DefaultQuantum
	}
	if c.EnablePreemption != nil {
		t.EnablePreemption = *c.EnablePreemption
	}
	if c.NHarts != nil {
		t.NHarts = *c.NHarts
	}
	if c.Migration != nil {
		switch *c.Migration {
		case "least_busy":
			t.Migration = LeastBusy
		case "round_robin":
			t.Migration = RoundRobin
		case "next_hart":
			t.Migration = NextHart
		}
	}
	return t, nil
}
