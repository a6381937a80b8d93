// Package config loads zonecore's configuration with viper and
// validates it with go-playground/validator: zones, DNSSEC policy,
// service addresses, logging, and the keystore database.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level configuration, scoped to zone management.
type Config struct {
	Service  ServiceConf             `mapstructure:"service"`
	DNS      DNSEngineConf           `mapstructure:"dnsengine"`
	Zones    map[string]ZoneConf     `mapstructure:"zones"`
	Dnssec   map[string]DnssecPolicy `mapstructure:"dnssecpolicies"`
	Log      LogConf                 `mapstructure:"log"`
	Database DbConf                  `mapstructure:"db"`
}

type ServiceConf struct {
	Name      string `mapstructure:"name" validate:"required"`
	Verbose   bool   `mapstructure:"verbose"`
	Debug     bool   `mapstructure:"debug"`
	ZonesDir  string `mapstructure:"zonesdir" validate:"required"`
	Templates string `mapstructure:"templates"` // optional zone-template pack
}

// DNSEngineConf lists the addresses the (out-of-scope) listener layer
// would bind; kept here because zone config routinely references it for
// NOTIFY/AXFR source addresses.
type DNSEngineConf struct {
	Addresses []string `mapstructure:"addresses" validate:"required,min=1"`
}

// ZoneConf is one entry of the Zones map.
type ZoneConf struct {
	Name         string   `mapstructure:"name" validate:"required"`
	Template     string   `mapstructure:"template"`
	Type         string   `mapstructure:"type" validate:"required_without=Template,omitempty,oneof=primary secondary stub forwarder"`
	Zonefile     string   `mapstructure:"zonefile"`
	Primary      string   `mapstructure:"primary"` // upstream, for secondary/stub zones
	Notify       []string `mapstructure:"notify"`
	Forwarders   []string `mapstructure:"forwarders"`
	Options      []string `mapstructure:"options"`
	DnssecPolicy string   `mapstructure:"dnssecpolicy"`
}

// DnssecPolicy carries the fields the Signer abstraction consumes.
type DnssecPolicy struct {
	Algorithm  string `mapstructure:"algorithm" validate:"required"`
	KeySize    int    `mapstructure:"keysize"`
	NSEC3      bool   `mapstructure:"nsec3"`
	Iterations uint16 `mapstructure:"iterations"`
	Salt       string `mapstructure:"salt"`
}

type LogConf struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxsizemb"`
	MaxBackups int    `mapstructure:"maxbackups"`
	MaxAgeDays int    `mapstructure:"maxagedays"`
}

// DbConf points at the sqlite file backing internal/keystore.
type DbConf struct {
	File string `mapstructure:"file" validate:"required"`
}

var validate = validator.New()

// Load reads configuration from cfgFile (or the default search path if
// empty), binds flags, and validates the result.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// "::" as key delimiter keeps dotted zone names (map keys) intact.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("yaml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("zonecore")
		v.AddConfigPath("/etc/zonecore")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("ZONECORE")
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Service.Templates != "" {
		templates, err := LoadTemplates(cfg.Service.Templates)
		if err != nil {
			return nil, err
		}
		for name, z := range cfg.Zones {
			if z.Template == "" {
				continue
			}
			t, ok := templates[z.Template]
			if !ok {
				return nil, fmt.Errorf("zone %q references unknown template %q", name, z.Template)
			}
			cfg.Zones[name] = ApplyTemplate(z, t)
		}
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	for name, z := range cfg.Zones {
		if err := validate.Struct(z); err != nil {
			return nil, fmt.Errorf("validating zone %q: %w", name, err)
		}
	}
	return &cfg, nil
}
