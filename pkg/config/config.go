package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Model ModelConfig `yaml:"model"`
	Build BuildConfig `yaml:"build"`
	Data  DataConfig  `yaml:"data"`
	Bench BenchConfig `yaml:"bench"`
	Log   LogConfig   `yaml:"log"`
}

type ModelConfig struct {
	Family string `yaml:"family"` // polynomial, linear or rmi
	Degree int    `yaml:"degree"` // polynomial degree
	Fanout int    `yaml:"fanout"` // rmi bucket count
}

type BuildConfig struct {
	Workers          int     `yaml:"workers"`
	BloomFilter      bool    `yaml:"bloom_filter"`
	BloomFalseProb   float64 `yaml:"bloom_false_prob"`
	DiagnosticPoints int     `yaml:"diagnostic_points"`
}

type DataConfig struct {
	// truncnorm, uniform or lognormal
	Distribution string  `yaml:"distribution"`
	Count        int     `yaml:"count"`
	Mean         float64 `yaml:"mean"`
	SD           float64 `yaml:"sd"`
	Low          float64 `yaml:"low"`
	High         float64 `yaml:"high"`
	Seed         uint64  `yaml:"seed"`
	// SQLite key dataset; empty generates keys in memory.
	StorePath string `yaml:"store_path"`
}

type BenchConfig struct {
	SampleFraction float64 `yaml:"sample_fraction"`
	Rounds         int     `yaml:"rounds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Family: "polynomial",
			Degree: 5,
			Fanout: 1000,
		},
		Build: BuildConfig{
			Workers:          1,
			BloomFalseProb:   0.01,
			DiagnosticPoints: 5000,
		},
		Data: DataConfig{
			Distribution: "truncnorm",
			Count:        100000,
			Mean:         4,
			SD:           2,
			Low:          0,
			High:         10,
			Seed:         1,
		},
		Bench: BenchConfig{
			SampleFraction: 0.3,
			Rounds:         10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configPath over the defaults. An empty path searches
// configs/curveindex.yaml and curveindex.yaml and falls back to defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/curveindex.yaml", "curveindex.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, errors.Wrapf(err, "parse %s", p)
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", configPath)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Family == "" {
		cfg.Model.Family = "polynomial"
	}
	if cfg.Model.Degree < 0 {
		cfg.Model.Degree = 5
	}
	if cfg.Model.Fanout <= 0 {
		cfg.Model.Fanout = 1000
	}
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = 1
	}
	if cfg.Build.BloomFalseProb <= 0 || cfg.Build.BloomFalseProb >= 1 {
		cfg.Build.BloomFalseProb = 0.01
	}
	if cfg.Build.DiagnosticPoints <= 0 {
		cfg.Build.DiagnosticPoints = 5000
	}
	if cfg.Data.Count <= 0 {
		cfg.Data.Count = 100000
	}
	if cfg.Bench.SampleFraction <= 0 || cfg.Bench.SampleFraction > 1 {
		cfg.Bench.SampleFraction = 0.3
	}
	if cfg.Bench.Rounds <= 0 {
		cfg.Bench.Rounds = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
