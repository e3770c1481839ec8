package peer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins the module id and grid coordinates of a peer name.
const Separator = "-"

var (
	// ErrBadName is returned when a peer name does not end in two coordinates.
	ErrBadName = errors.New("peer: malformed peer name")
	// ErrBadModuleID is returned for module ids that cannot be used in names.
	ErrBadModuleID = errors.New("peer: invalid module id")
)

// Sanitize replaces every character outside [A-Za-z0-9-] with '-'.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, name)
}

// MakeName returns the advertised name of the tile at grid position x,y.
// A negative coordinate produces an empty token before its digits, e.g.
// "mod-3--2" for (3,-2).
func MakeName(moduleID string, x, y int) string {
	return Sanitize(fmt.Sprintf("%s%s%d%s%d", moduleID, Separator, x, Separator, y))
}

// ParseName recovers the grid coordinates from a peer name. Coordinates are
// read from the end of the name.
func ParseName(name string) (x, y int, err error) {
	tokens := strings.Split(name, Separator)
	y, tokens, err = popInt(tokens)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", name, err)
	}
	x, tokens, err = popInt(tokens)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", name, err)
	}
	if len(tokens) == 0 {
		return 0, 0, fmt.Errorf("%q has no module id: %w", name, ErrBadName)
	}
	return x, y, nil
}

func popInt(tokens []string) (int, []string, error) {
	if len(tokens) == 0 {
		return 0, nil, ErrBadName
	}
	last := tokens[len(tokens)-1]
	n, err := strconv.Atoi(last)
	if err != nil || strings.HasPrefix(last, "+") {
		return 0, nil, ErrBadName
	}
	rest := tokens[:len(tokens)-1]
	if len(rest) > 0 && rest[len(rest)-1] == "" {
		n = -n
		rest = rest[:len(rest)-1]
	}
	return n, rest, nil
}

// ValidateModuleID checks that id can be embedded in a peer name without
// shifting the coordinate tokens.
func ValidateModuleID(id string) error {
	if id == "" {
		return fmt.Errorf("empty id: %w", ErrBadModuleID)
	}
	if strings.Contains(Sanitize(id), Separator) {
		return fmt.Errorf("%q contains %q after sanitizing: %w", id, Separator, ErrBadModuleID)
	}
	return nil
}
