package domain

import (
	"encoding/json"
	"sort"
)

// Directive is one parsed webconf line: either a value or a bare flag.
type Directive struct {
	Value string
	Flag  bool
}

// ConfigMap holds the directives of a single webconf file. Later lines win.
type ConfigMap map[string]Directive

// Get returns the value of key. Flags report ok=true with an empty value.
func (c ConfigMap) Get(key string) (string, bool) {
	d, ok := c[key]
	if !ok {
		return "", false
	}
	return d.Value, true
}

func (c ConfigMap) Has(key string) bool {
	_, ok := c[key]
	return ok
}

func (c ConfigMap) IsFlag(key string) bool {
	return c[key].Flag
}

// Keys returns the directive names in sorted order.
func (c ConfigMap) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c ConfigMap) Clone() ConfigMap {
	out := make(ConfigMap, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// plain renders values as strings and flags as true.
func (c ConfigMap) plain() map[string]any {
	m := make(map[string]any, len(c))
	for k, d := range c {
		if d.Flag {
			m[k] = true
			continue
		}
		m[k] = d.Value
	}
	return m
}

func (c ConfigMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.plain())
}

func (c ConfigMap) MarshalYAML() (any, error) {
	return c.plain(), nil
}

func (c *ConfigMap) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(ConfigMap, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case bool:
			out[k] = Directive{Flag: t}
		case string:
			out[k] = Directive{Value: t}
		}
	}
	*c = out
	return nil
}
