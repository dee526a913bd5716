package object

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scope decides how often an object is built.
type Scope int

const (
	// Singleton objects are built once per manager.
	Singleton Scope = iota + 1
	// Prototype objects are built on every request.
	Prototype
)

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singleton":
		return Singleton, nil
	case "prototype":
		return Prototype, nil
	}
	return 0, fmt.Errorf("%w: scope %q", ErrInvalidConfiguration, s)
}

func (s Scope) String() string {
	switch s {
	case Singleton:
		return "singleton"
	case Prototype:
		return "prototype"
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

func (s *Scope) UnmarshalYAML(n *yaml.Node) error {
	var str string
	if err := n.Decode(&str); err != nil {
		return err
	}
	scope, err := ParseScope(str)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*s = scope
	return nil
}

func (s Scope) MarshalYAML() (any, error) {
	return s.String(), nil
}

// State is the construction state of an object, logged on each transition.
type State int

const (
	Requested State = iota + 1
	ResolvingDependencies
	Instantiated
	Injected
	Ready
)

var stateNames = map[State]string{
	Requested:             "requested",
	ResolvingDependencies: "resolving dependencies",
	Instantiated:          "instantiated",
	Injected:              "injected",
	Ready:                 "ready",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}
