package params

import (
	"errors"
	"net/url"
)

var (
	// ErrUnknownOption is returned when setting a parameter that is not recognized.
	ErrUnknownOption = errors.New("unknown display option")
	// ErrFixedOption is returned when setting a parameter that is only read
	// when the display attaches.
	ErrFixedOption = errors.New("display option cannot change after attach")
)

// Navigation is the target a display was opened with.
type Navigation struct {
	Path string
	// RouteParameter is the optional trailing path segment, e.g. "video".
	RouteParameter string
	Query          url.Values
}

// Entry is one recognized parameter with its declared default and resolved
// value. The empty string means no value.
type Entry struct {
	Key     string `json:"key"`
	Default string `json:"default"`
	Value   string `json:"value"`
}

// Config is the normalized configuration of one display. It is owned by a
// single session and is not safe for concurrent use.
type Config struct {
	path     string
	defaults Defaults
	values   map[string]string
	extra    url.Values
	settings Settings
}

// Normalize resolves every recognized option from nav, applies defaults to
// anything absent or malformed and computes the minimal query. Unrecognized
// parameters are carried through unchanged.
func Normalize(nav Navigation, d Defaults) *Config {
	c := &Config{
		path:     nav.Path,
		defaults: d,
		values:   make(map[string]string, len(Options)),
		extra:    url.Values{},
	}

	raw := nav.Query
	if nav.RouteParameter == RouteVideo {
		raw = cloneValues(raw)
		raw.Set(KeyVideo, "true")
	}

	for _, o := range Options {
		c.values[o.Key] = o.Resolve(raw[o.Key], d)
	}
	for k, vs := range raw {
		if _, known := lookup(k); known || len(vs) == 0 {
			continue
		}
		c.extra.Set(k, vs[0])
	}

	c.apply()
	return c
}

// Settings returns the resolved settings.
func (c *Config) Settings() Settings { return c.settings }

// Defaults returns the display kind defaults the config was resolved with.
func (c *Config) Defaults() Defaults { return c.defaults }

// Path returns the location path without query.
func (c *Config) Path() string { return c.path }

// Entries lists every recognized option in table order.
func (c *Config) Entries() []Entry {
	out := make([]Entry, 0, len(Options))
	for _, o := range Options {
		out = append(out, Entry{Key: o.Key, Default: o.Default(c.defaults), Value: c.values[o.Key]})
	}
	return out
}

// Query returns the minimal mapping: every value that differs from its
// declared default, plus unrecognized parameters.
func (c *Config) Query() url.Values {
	q := cloneValues(c.extra)
	for _, o := range Options {
		v := c.values[o.Key]
		if v == o.Default(c.defaults) || v == "" {
			continue
		}
		q.Set(o.Key, v)
	}
	return q
}

// Location returns the canonical path and query. Keys are sorted so equal
// configurations always produce the same location.
func (c *Config) Location() string {
	q := c.Query()
	if len(q) == 0 {
		return c.path
	}
	return c.path + "?" + q.Encode()
}

// Set changes one recognized option as if it had been given in the location
// and re-resolves it. Malformed values fall back to the declared default.
// The platform is chosen at attach time and cannot be set.
func (c *Config) Set(key, value string) error {
	o, ok := lookup(key)
	if !ok {
		return ErrUnknownOption
	}
	if key == KeyPlatform {
		return ErrFixedOption
	}
	c.values[key] = o.Resolve([]string{value}, c.defaults)
	c.apply()
	return nil
}

func (c *Config) apply() {
	var s Settings
	for _, o := range Options {
		o.Apply(&s, c.values[o.Key])
	}
	c.settings = s
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
