// Package palette resolves the colour tokens stored on events and tasks into
// values a renderer can paint with.
package palette

import (
	"regexp"
	"strings"
)

const (
	// AICategory marks events produced by the AI scheduler.
	AICategory = "AI_GENERATED"
	// AIGradient is painted on every AI-generated event, whatever its token.
	AIGradient = "linear-gradient(135deg, #667eea 0%, #764ba2 100%)"
	// DefaultColor (PEACOCK) is used for tokens the palette does not know.
	DefaultColor = "rgb(3, 155, 229)"
)

// Swatch is one named entry of the palette.
type Swatch struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// swatches is laid out the way the colour picker shows it: five rows of two.
var swatches = [][2]Swatch{
	{{"TOMATO", "rgb(213, 0, 0)"}, {"LIGHT_PINK", "rgb(230, 124, 115)"}},
	{{"TANGERINE", "rgb(244, 81, 30)"}, {"BANANA", "rgb(246, 191, 38)"}},
	{{"SAGE", "rgb(51, 182, 121)"}, {"BASIL", "rgb(11, 128, 67)"}},
	{{"PEACOCK", "rgb(3, 155, 229)"}, {"BLUEBERRY", "rgb(63, 81, 181)"}},
	{{"LAVENDER", "rgb(121, 134, 203)"}, {"GRAPE", "rgb(142, 36, 170)"}},
}

// Swatches returns a copy of the built-in palette in picker order.
func Swatches() [][2]Swatch {
	out := make([][2]Swatch, len(swatches))
	copy(out, swatches)
	return out
}

// functional matches CSS functional notation such as rgb(...), hsla(...) or
// linear-gradient(...).
var functional = regexp.MustCompile(`^[a-zA-Z][a-zA-Z-]*\(.*\)$`)

// IsLiteral reports whether token is already a colour value: a "#" hex code
// or a functional-notation string.
func IsLiteral(token string) bool {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "#") {
		return true
	}
	return functional.MatchString(token)
}

// Resolver maps colour tokens to renderable values.
type Resolver struct {
	table map[string]string
}

// NewResolver builds a resolver over the built-in palette plus extra named
// colours (e.g. from configuration). Extra names override built-in ones.
func NewResolver(extra map[string]string) *Resolver {
	table := make(map[string]string, 2*len(swatches)+len(extra))
	for _, row := range swatches {
		for _, s := range row {
			table[s.Name] = s.Value
		}
	}
	for name, value := range extra {
		table[strings.ToUpper(strings.TrimSpace(name))] = value
	}
	return &Resolver{table: table}
}

// Resolve returns the colour for an item's stored token and category.
//
// The rules apply in order: an AI-generated category always yields
// AIGradient; a literal colour is returned unchanged; a palette name is looked
// up; anything else falls back to DefaultColor.
func (r *Resolver) Resolve(token, category string) string {
	if strings.EqualFold(strings.TrimSpace(category), AICategory) {
		return AIGradient
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return DefaultColor
	}
	if IsLiteral(token) {
		return token
	}
	if v, ok := r.table[strings.ToUpper(token)]; ok {
		return v
	}
	return DefaultColor
}

// Lookup returns the palette value for a symbolic name.
func (r *Resolver) Lookup(name string) (string, bool) {
	v, ok := r.table[strings.ToUpper(strings.TrimSpace(name))]
	return v, ok
}

var std = NewResolver(nil)

// Resolve resolves against the built-in palette.
func Resolve(token, category string) string {
	return std.Resolve(token, category)
}

// Task priority accents.
const (
	AccentHigh    = "#ea4335"
	AccentMedium  = "#fbbc04"
	AccentLow     = "#34a853"
	AccentDefault = "#7c4dff"
)

// PriorityAccent returns the accent painted on a task deadline marker.
func PriorityAccent(priority string) string {
	switch strings.ToUpper(strings.TrimSpace(priority)) {
	case "HIGH":
		return AccentHigh
	case "MEDIUM":
		return AccentMedium
	case "LOW":
		return AccentLow
	default:
		return AccentDefault
	}
}

// Tint returns accent with a low alpha suffix for use as a background fill.
// Only #rrggbb accents are tinted; anything else is returned as-is.
func Tint(accent string) string {
	if len(accent) == 7 && strings.HasPrefix(accent, "#") {
		return accent + "20"
	}
	return accent
}
