package params

import (
	"math"
	"strconv"
	"strings"
)

// Recognized navigation parameter names.
const (
	KeyDark     = "dark"
	KeyPublic   = "public"
	KeyRecords  = "records"
	KeyLeaders  = "leaders"
	KeyEm       = "em"
	KeyTw       = "tw"
	KeyAbb      = "abb"
	KeyVideo    = "video"
	KeyPlatform = "fop"
)

// RouteVideo is the route parameter that selects video mode.
const RouteVideo = "video"

// Defaults holds the per display kind defaults for options whose default is
// not fixed.
type Defaults struct {
	Records bool `yaml:"records" json:"records"`
	Leaders bool `yaml:"leaders" json:"leaders"`
}

// Settings is the resolved in-memory configuration of a display.
type Settings struct {
	Dark       bool     `json:"dark"`
	Public     bool     `json:"public"`
	Records    bool     `json:"records"`
	Leaders    bool     `json:"leaders"`
	FontScale  *float64 `json:"fontScale,omitempty"`
	TeamWidth  *float64 `json:"teamWidth,omitempty"`
	Abbreviate bool     `json:"abbreviate"`
	Video      bool     `json:"video"`
	Platform   string   `json:"platform,omitempty"`
}

// DefaultFontScale is used when no font scale is set.
const DefaultFontScale = 1.0

// EffectiveFontScale returns the font scale, falling back to DefaultFontScale.
func (s Settings) EffectiveFontScale() float64 {
	if s.FontScale == nil {
		return DefaultFontScale
	}
	return *s.FontScale
}

// Option describes one recognized parameter. Resolve maps raw values to the
// canonical string form; the empty string means unset. A resolved value equal
// to Default is never emitted.
type Option struct {
	Key     string
	Default func(Defaults) string
	Resolve func(values []string, d Defaults) string
	Apply   func(s *Settings, value string)
}

// Options is the table of recognized parameters in emission order.
var Options = []Option{
	{
		Key:     KeyDark,
		Default: fixed("true"),
		Resolve: func(values []string, _ Defaults) string {
			if len(values) == 0 {
				return "true"
			}
			return strconv.FormatBool(strings.EqualFold(values[0], "true"))
		},
		Apply: func(s *Settings, v string) { s.Dark = v == "true" },
	},
	{
		Key:     KeyPublic,
		Default: fixed("false"),
		Resolve: flag,
		Apply:   func(s *Settings, v string) { s.Public = v == "true" },
	},
	{
		Key:     KeyRecords,
		Default: func(d Defaults) string { return strconv.FormatBool(d.Records) },
		Resolve: func(values []string, d Defaults) string { return visibility(values, d.Records) },
		Apply:   func(s *Settings, v string) { s.Records = v == "true" },
	},
	{
		Key:     KeyLeaders,
		Default: func(d Defaults) string { return strconv.FormatBool(d.Leaders) },
		Resolve: func(values []string, d Defaults) string { return visibility(values, d.Leaders) },
		Apply:   func(s *Settings, v string) { s.Leaders = v == "true" },
	},
	{
		Key:     KeyEm,
		Default: fixed(""),
		Resolve: positiveReal,
		Apply:   func(s *Settings, v string) { s.FontScale = parseReal(v) },
	},
	{
		Key:     KeyTw,
		Default: fixed(""),
		Resolve: positiveReal,
		Apply:   func(s *Settings, v string) { s.TeamWidth = parseReal(v) },
	},
	{
		Key:     KeyAbb,
		Default: fixed("false"),
		Resolve: flag,
		Apply:   func(s *Settings, v string) { s.Abbreviate = v == "true" },
	},
	{
		Key:     KeyVideo,
		Default: fixed("false"),
		Resolve: flag,
		Apply:   func(s *Settings, v string) { s.Video = v == "true" },
	},
	{
		Key:     KeyPlatform,
		Default: fixed(""),
		Resolve: func(values []string, _ Defaults) string {
			if len(values) == 0 {
				return ""
			}
			return strings.TrimSpace(values[0])
		},
		Apply: func(s *Settings, v string) { s.Platform = v },
	},
}

func lookup(key string) (Option, bool) {
	for _, o := range Options {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

func fixed(v string) func(Defaults) string {
	return func(Defaults) string { return v }
}

func flag(values []string, _ Defaults) string {
	return strconv.FormatBool(len(values) > 0 && strings.EqualFold(values[0], "true"))
}

// visibility resolves a flag whose default is chosen by the display kind:
// only a literal "false" hides a visible default and only a literal "true"
// shows a hidden one.
func visibility(values []string, def bool) string {
	if len(values) == 0 {
		return strconv.FormatBool(def)
	}
	if def {
		return strconv.FormatBool(values[0] != "false")
	}
	return strconv.FormatBool(values[0] == "true")
}

func positiveReal(values []string, _ Defaults) string {
	if len(values) == 0 || parseReal(values[0]) == nil {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func parseReal(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
