package boreas

import (
	"encoding/json"
	"errors"
)

// RouteDescriptor describes a registered route for introspection: debug
// error pages list them, and gateways can consume them for discovery.
type RouteDescriptor struct {
	Path      string   `json:"path"`
	Methods   []string `json:"methods,omitempty"`
	Name      string   `json:"name,omitempty"`
	WebSocket bool     `json:"websocket,omitempty"`
}

// MarshalText renders the descriptor in its route-table line form.
func (d *RouteDescriptor) MarshalText() ([]byte, error) {
	line := d.Path
	if len(d.Methods) > 0 {
		line += " ["
		for i, m := range d.Methods {
			if i > 0 {
				line += ", "
			}
			line += m
		}
		line += "]"
	}
	if d.WebSocket {
		line += " [websocket]"
	}
	if d.Name != "" {
		line += " (" + d.Name + ")"
	}
	return []byte(line), nil
}

// Link is a named path template kept purely for reverse URL generation. A
// link never takes part in dispatch.
type Link struct {
	Name    string
	Pattern *Pattern

	handlerID uintptr
}

// linkTable holds reverse-routing links keyed by name and by handler
// identity.
type linkTable struct {
	links []*Link
}

func newLinkTable() *linkTable {
	return &linkTable{}
}

func (t *linkTable) add(link *Link) error {
	for _, existing := range t.links {
		if existing.Name == link.Name {
			return &ConfigError{Reason: "duplicate link name: " + link.Name}
		}
	}
	t.links = append(t.links, link)
	return nil
}

func (t *linkTable) byName(name string) (*Link, bool) {
	for _, link := range t.links {
		if link.Name == name {
			return link, true
		}
	}
	return nil, false
}

func (t *linkTable) byHandler(handlerID uintptr) (*Link, bool) {
	for _, link := range t.links {
		if link.handlerID != 0 && link.handlerID == handlerID {
			return link, true
		}
	}
	return nil, false
}

// MarshalJSON renders a link as its name and template.
func (l *Link) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}{
		Name: l.Name,
		Path: l.Pattern.String(),
	})
}

// errLinkNotFound is returned by URLFor when no named route or link matches.
var errLinkNotFound = errors.New("no route or link with that name")
