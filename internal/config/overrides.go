package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. OFFLINE_MODEL.
const EnvPrefix = "OFFLINE"

// Override keys shared by command-line flags and environment variables.
const (
	KeyEndpoint    = "endpoint"
	KeyModel       = "model"
	KeyNumCtx      = "num-ctx"
	KeyTemperature = "temperature"
	KeyTopP        = "top-p"
	KeySet         = "set"
)

var overrideKeys = []string{KeyEndpoint, KeyModel, KeyNumCtx, KeyTemperature, KeyTopP}

// Sections are the top-level config.yaml blocks a --set key may address.
var Sections = []string{"assistant", "context", "patches", "transcripts"}

// BindOverrides returns a viper instance resolving the override keys from
// flags (when present in the set) and OFFLINE_* environment variables.
func BindOverrides(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags == nil {
		return v, nil
	}
	for _, key := range overrideKeys {
		flag := flags.Lookup(key)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("config: bind --%s: %w", key, err)
		}
	}
	return v, nil
}

// ApplyOverrides layers flag and environment values over the project config.
// Flags win over environment; both win over config.yaml. Dotted --set pairs
// (assistant.model=llama3) are applied last.
func (c *Config) ApplyOverrides(v *viper.Viper, sets map[string]string) error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	if v != nil {
		a := &c.Project.Assistant
		if v.IsSet(KeyEndpoint) {
			a.Endpoint = v.GetString(KeyEndpoint)
		}
		if v.IsSet(KeyModel) {
			a.Model = v.GetString(KeyModel)
		}
		if v.IsSet(KeyNumCtx) {
			a.NumCtx = v.GetInt(KeyNumCtx)
		}
		if v.IsSet(KeyTemperature) {
			a.Temperature = v.GetFloat64(KeyTemperature)
		}
		if v.IsSet(KeyTopP) {
			topP := v.GetFloat64(KeyTopP)
			a.TopP = &topP
		}
	}
	if len(sets) > 0 {
		node, err := overrideNode(sets)
		if err != nil {
			return err
		}
		if err := node.Decode(&c.Project); err != nil {
			return fmt.Errorf("config: apply --set overrides: %w", err)
		}
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// overrideNode turns dotted key=value pairs into a YAML mapping so values are
// typed by the same resolver that reads config.yaml.
func overrideNode(sets map[string]string) (*yaml.Node, error) {
	keys := make([]string, 0, len(sets))
	for key := range sets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range keys {
		parts := strings.Split(key, ".")
		parent := root
		for i, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				return nil, fmt.Errorf("config: invalid override key %q", key)
			}
			if i == len(parts)-1 {
				setChild(parent, part, &yaml.Node{Kind: yaml.ScalarNode, Value: sets[key]})
				break
			}
			child := findChild(parent, part)
			if child == nil {
				child = &yaml.Node{Kind: yaml.MappingNode}
				setChild(parent, part, child)
			} else if child.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("config: override %q conflicts with %s", key, part)
			}
			parent = child
		}
	}
	return root, nil
}

func findChild(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func setChild(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
}
