package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ZoneTemplate is a reusable bundle of zone settings an operator can
// apply to many zones at once: a template file carries defaults for
// type, forwarders, notify targets, and DNSSEC policy, and a ZoneConf
// that names a template inherits any field it left empty.
type ZoneTemplate struct {
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Notify       []string `yaml:"notify"`
	Forwarders   []string `yaml:"forwarders"`
	Options      []string `yaml:"options"`
	DnssecPolicy string   `yaml:"dnssecpolicy"`
}

// LoadTemplates reads a standalone YAML file of zone templates. The
// template file is deliberately outside the viper config so operators
// can ship template packs independently of the server configuration.
func LoadTemplates(path string) (map[string]ZoneTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file %s: %w", path, err)
	}
	var wrapper struct {
		Templates []ZoneTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parsing template file %s: %w", path, err)
	}
	out := make(map[string]ZoneTemplate, len(wrapper.Templates))
	for _, t := range wrapper.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template file %s: template with empty name", path)
		}
		if _, dup := out[t.Name]; dup {
			return nil, fmt.Errorf("template file %s: duplicate template %q", path, t.Name)
		}
		out[t.Name] = t
	}
	return out, nil
}

// ApplyTemplate fills the empty fields of zc from t. Explicit zone
// settings always win over template defaults.
func ApplyTemplate(zc ZoneConf, t ZoneTemplate) ZoneConf {
	if zc.Type == "" {
		zc.Type = t.Type
	}
	if len(zc.Notify) == 0 {
		zc.Notify = append(zc.Notify, t.Notify...)
	}
	if len(zc.Forwarders) == 0 {
		zc.Forwarders = append(zc.Forwarders, t.Forwarders...)
	}
	if len(zc.Options) == 0 {
		zc.Options = append(zc.Options, t.Options...)
	}
	if zc.DnssecPolicy == "" {
		zc.DnssecPolicy = t.DnssecPolicy
	}
	return zc
}
