package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var embeddedPersonas []byte

// Descriptor is the persona attached to a theme.
type Descriptor struct {
	Theme         Theme
	TicketID      int64
	Style         string
	Instruction   string
	BannedMarkers []string
	// Adapter optionally names a theme-specific model (e.g. a LoRA adapter
	// served by vLLM). Empty means the default curation model.
	Adapter string
}

type fileFormat struct {
	DefaultBannedMarkers []string      `yaml:"default_banned_markers"`
	Personas             []personaYAML `yaml:"personas"`
}

type personaYAML struct {
	Theme         string   `yaml:"theme"`
	TicketID      int64    `yaml:"ticket_id"`
	Style         string   `yaml:"style"`
	Instruction   string   `yaml:"instruction"`
	BannedMarkers []string `yaml:"banned_markers"`
	Adapter       string   `yaml:"adapter"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	byTheme  map[Theme]Descriptor
	byTicket map[int64]Theme
}

// Default parses the persona file compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embeddedPersonas)
}

// LoadFile reads an operator-supplied persona file in the same format.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	return Parse(raw)
}

// Parse validates that every theme has exactly one persona with a unique
// ticket, and merges the default banned markers into each descriptor.
func Parse(raw []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse persona catalog: %w", err)
	}

	c := &Catalog{byTheme: map[Theme]Descriptor{}, byTicket: map[int64]Theme{}}
	for _, p := range f.Personas {
		theme, ok := ParseTheme(p.Theme)
		if !ok {
			return nil, &UnknownThemeError{Theme: p.Theme}
		}
		if _, dup := c.byTheme[theme]; dup {
			return nil, fmt.Errorf("duplicate persona for theme %q", theme)
		}
		if p.TicketID <= 0 {
			return nil, fmt.Errorf("persona %q: ticket_id must be positive", theme)
		}
		if other, dup := c.byTicket[p.TicketID]; dup {
			return nil, fmt.Errorf("ticket %d mapped to both %q and %q", p.TicketID, other, theme)
		}
		style, instruction := strings.TrimSpace(p.Style), strings.TrimSpace(p.Instruction)
		if style == "" || instruction == "" {
			return nil, fmt.Errorf("persona %q: style and instruction are required", theme)
		}
		c.byTheme[theme] = Descriptor{
			Theme:         theme,
			TicketID:      p.TicketID,
			Style:         style,
			Instruction:   instruction,
			BannedMarkers: mergeMarkers(f.DefaultBannedMarkers, p.BannedMarkers),
			Adapter:       strings.TrimSpace(p.Adapter),
		}
		c.byTicket[p.TicketID] = theme
	}

	var missing []string
	for _, t := range Themes {
		if _, ok := c.byTheme[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("persona catalog missing themes: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func mergeMarkers(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, m := range list {
			// Markers match case-sensitively, so only whitespace is normalized.
			m = strings.TrimSpace(m)
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func (c *Catalog) Lookup(theme string) (Descriptor, error) {
	t, ok := ParseTheme(theme)
	if !ok {
		return Descriptor{}, &UnknownThemeError{Theme: theme}
	}
	d, ok := c.byTheme[t]
	if !ok {
		return Descriptor{}, &UnknownThemeError{Theme: theme}
	}
	return d, nil
}

func (c *Catalog) ByTicket(ticketID int64) (Descriptor, error) {
	t, ok := c.byTicket[ticketID]
	if !ok {
		return Descriptor{}, &UnknownThemeError{TicketID: ticketID}
	}
	return c.byTheme[t], nil
}

// Resolve picks the persona for a request that names a theme, a ticket, or
// both. An explicit theme wins over the ticket mapping.
func (c *Catalog) Resolve(theme string, ticketID int64) (Descriptor, error) {
	if strings.TrimSpace(theme) != "" {
		return c.Lookup(theme)
	}
	if ticketID > 0 {
		return c.ByTicket(ticketID)
	}
	return Descriptor{}, &UnknownThemeError{}
}

// Themes lists the configured themes in ticket order.
func (c *Catalog) Themes() []Theme {
	out := make([]Theme, 0, len(Themes))
	for _, t := range Themes {
		if _, ok := c.byTheme[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// IsUnknownTheme reports whether err carries an UnknownThemeError.
func IsUnknownTheme(err error) bool {
	var ute *UnknownThemeError
	return errors.As(err, &ute)
}
