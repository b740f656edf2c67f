package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
		MetricsPort string        `mapstructure:"metricsPort"`
	} `mapstructure:"server"`
	Discovery struct {
		OverallBudget     time.Duration `mapstructure:"overallBudget"`
		ProviderTimeout   time.Duration `mapstructure:"providerTimeout"`
		DefaultLimit      int           `mapstructure:"defaultLimit"`
		MergeRadiusMeters float64       `mapstructure:"mergeRadiusMeters"`
		ChainDenylist     []string      `mapstructure:"chainDenylist"`
	} `mapstructure:"discovery"`
	Cache struct {
		Dir        string        `mapstructure:"dir"`
		TTL        time.Duration `mapstructure:"ttl"`
		GeocodeTTL time.Duration `mapstructure:"geocodeTTL"`
	} `mapstructure:"cache"`
	RateLimit struct {
		StateFile   string        `mapstructure:"stateFile"`
		MinInterval time.Duration `mapstructure:"minInterval"`
	} `mapstructure:"ratelimit"`
	Geocoder struct {
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"geocoder"`
	Providers struct {
		Overpass struct {
			Enabled   bool     `mapstructure:"enabled"`
			Endpoints []string `mapstructure:"endpoints"`
			Retries   int      `mapstructure:"retries"`
		} `mapstructure:"overpass"`
		GooglePlaces struct {
			Enabled  bool   `mapstructure:"enabled"`
			Endpoint string `mapstructure:"endpoint"`
		} `mapstructure:"googlePlaces"`
		Wikidata struct {
			Enabled  bool   `mapstructure:"enabled"`
			Endpoint string `mapstructure:"endpoint"`
		} `mapstructure:"wikidata"`
		TomTom struct {
			Enabled  bool   `mapstructure:"enabled"`
			Endpoint string `mapstructure:"endpoint"`
		} `mapstructure:"tomtom"`
		Searx struct {
			Enabled   bool     `mapstructure:"enabled"`
			Endpoints []string `mapstructure:"endpoints"`
		} `mapstructure:"searx"`
		Wikipedia struct {
			Enabled   bool     `mapstructure:"enabled"`
			Endpoints []string `mapstructure:"endpoints"`
		} `mapstructure:"wikipedia"`
	} `mapstructure:"providers"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
