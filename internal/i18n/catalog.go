// Package i18n loads the bot message catalog from YAML.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages/*.yaml
var embedded embed.FS

// DefaultFile is the embedded catalog used as the base layer.
const DefaultFile = "messages/en.yaml"

// Catalog maps dotted keys to message templates.
type Catalog struct {
	messages map[string]string
}

// Load reads the embedded catalog and overlays the file at path when path is set.
func Load(path string) (*Catalog, error) {
	base, err := embedded.ReadFile(DefaultFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded catalog: %w", err)
	}
	c := &Catalog{messages: map[string]string{}}
	if err := c.merge(base); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := c.merge(data); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// MustDefault returns the embedded catalog and panics when it is broken.
func MustDefault() *Catalog {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

// merge accepts nested maps and flattens them into dotted keys.
func (c *Catalog) merge(data []byte) error {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	return flatten("", tree, c.messages)
}

func flatten(prefix string, node map[string]any, out map[string]string) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return nil
}

// Text renders key with fmt verbs filled from args. Unknown keys render as the key itself.
func (c *Catalog) Text(key string, args ...any) string {
	msg, ok := c.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
	_, ok := c.messages[key]
	return ok
}

// Keys returns all defined keys, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.messages))
	for k := range c.messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
