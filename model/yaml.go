package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either a bare integer (fixed host port) or the full
// mapping form with mode/port/range fields.
func (p *PortPolicy) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var port int
		if err := value.Decode(&port); err != nil {
			return fmt.Errorf("port policy must be an integer or a mapping: %w", err)
		}
		*p = PortPolicy{Mode: PortFixed, Port: port}
		return nil
	}

	type rawPolicy PortPolicy
	var raw rawPolicy
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Mode == "" {
		if raw.Port > 0 {
			raw.Mode = PortFixed
		} else {
			raw.Mode = PortAuto
		}
	}
	*p = PortPolicy(raw)
	return nil
}

// Clone returns a deep copy so callers can mutate ports without touching the
// shared catalog entry.
func (s ImageSpec) Clone() ImageSpec {
	out := s
	out.Ports = make(map[int]PortPolicy, len(s.Ports))
	for k, v := range s.Ports {
		out.Ports[k] = v
	}
	return out
}
