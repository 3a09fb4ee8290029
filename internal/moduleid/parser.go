package moduleid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	idRegex   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):(\d+)$`)
	portRegex = regexp.MustCompile(`^(.+)\[(\d+)\]$`)
)

// Parse validates a raw module identifier and returns it.
func Parse(raw string) (ID, error) {
	if _, _, err := Split(ID(raw)); err != nil {
		return "", err
	}
	return ID(raw), nil
}

// Split returns the descriptor name and instance number of an identifier.
func Split(id ID) (string, int, error) {
	if id == "" {
		return "", 0, fmt.Errorf("module identifier cannot be empty")
	}
	matches := idRegex.FindStringSubmatch(string(id))
	if matches == nil {
		return "", 0, fmt.Errorf("invalid module identifier format: %q", id)
	}
	n, err := strconv.Atoi(matches[2])
	if err != nil {
		// Unreachable due to regex `\d+`
		return "", 0, fmt.Errorf("internal error parsing instance number: %w", err)
	}
	return matches[1], n, nil
}

// ParsePort parses a port reference such as `Send:0[1]`.
func ParsePort(raw string) (PortRef, error) {
	matches := portRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if matches == nil {
		return PortRef{}, fmt.Errorf("invalid port reference format: %q", raw)
	}
	id, err := Parse(matches[1])
	if err != nil {
		return PortRef{}, err
	}
	index, err := strconv.Atoi(matches[2])
	if err != nil {
		return PortRef{}, fmt.Errorf("internal error parsing port index: %w", err)
	}
	return PortRef{Module: id, Index: index}, nil
}

// ParseConnection parses a connection identifier such as `A:0[0]->B:0[1]`.
func ParseConnection(raw string) (ConnectionID, error) {
	from, to, ok := strings.Cut(raw, "->")
	if !ok {
		return ConnectionID{}, fmt.Errorf("invalid connection format, expected 'from->to': %q", raw)
	}
	src, err := ParsePort(from)
	if err != nil {
		return ConnectionID{}, fmt.Errorf("invalid connection source: %w", err)
	}
	dst, err := ParsePort(to)
	if err != nil {
		return ConnectionID{}, fmt.Errorf("invalid connection destination: %w", err)
	}
	return ConnectionID{From: src, To: dst}, nil
}
