package schema

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema is returned for schema documents that cannot be turned into
// descriptors.
var ErrInvalidSchema = errors.New("schema: invalid schema")

// LoadFile reads a YAML schema document from path. See Load.
func LoadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Load parses a YAML schema document into an object descriptor.
//
// The document is a mapping of property names to property specs. A spec is
// either a bare kind name or a mapping:
//
//	name: string
//	age: number
//	tags:
//	  type: arrayOf
//	  of: string
//	nickname:
//	  type: string
//	  optional: true
//	born:
//	  type: complex
//	  codec: time
//	address:
//	  type: object
//	  readonly: true
//	  properties:
//	    street: string
//	    zip: string
//	id: [string, number]   # shorthand for oneOf
//
// Computed, action and method kinds carry Go functions and cannot be declared
// in a schema file.
func Load(data []byte) (*Descriptor, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidSchema)
	}

	props, err := parseProperties(doc.Content[0])
	if err != nil {
		return nil, err
	}
	return Object(props), nil
}

type propertySpec struct {
	Type         string      `yaml:"type"`
	Readonly     bool        `yaml:"readonly"`
	Optional     bool        `yaml:"optional"`
	Properties   yaml.Node   `yaml:"properties"`
	Of           yaml.Node   `yaml:"of"`
	Alternatives []yaml.Node `yaml:"alternatives"`
	Codec        string      `yaml:"codec"`
}

func parseProperties(n *yaml.Node) (Props, error) {
	if n.Kind == 0 {
		return Props{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, invalid(n, "properties must be a mapping")
	}

	props := make(Props, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		if _, dup := props[name]; dup {
			return nil, invalid(n.Content[i], "duplicate property %q", name)
		}
		d, err := parseDescriptor(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		props[name] = d
	}
	return props, nil
}

func parseDescriptor(n *yaml.Node) (*Descriptor, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return primitive(n, n.Value)

	case yaml.SequenceNode:
		alts := make([]*Descriptor, 0, len(n.Content))
		for _, c := range n.Content {
			d, err := parseDescriptor(c)
			if err != nil {
				return nil, err
			}
			alts = append(alts, d)
		}
		return OneOf(alts...), nil

	case yaml.MappingNode:
		var spec propertySpec
		if err := n.Decode(&spec); err != nil {
			return nil, invalid(n, "%v", err)
		}
		d, err := fromSpec(n, &spec)
		if err != nil {
			return nil, err
		}
		if spec.Readonly {
			d = Readonly(d)
		}
		if spec.Optional {
			d = Optional(d)
		}
		return d, nil

	default:
		return nil, invalid(n, "unsupported property spec")
	}
}

func fromSpec(n *yaml.Node, spec *propertySpec) (*Descriptor, error) {
	switch spec.Type {
	case "object":
		props, err := parseProperties(&spec.Properties)
		if err != nil {
			return nil, err
		}
		return Object(props), nil

	case "arrayOf", "mapOf":
		if spec.Of.Kind == 0 {
			return nil, invalid(n, "%s needs an element spec under 'of'", spec.Type)
		}
		elem, err := parseDescriptor(&spec.Of)
		if err != nil {
			return nil, err
		}
		if spec.Type == "arrayOf" {
			return ArrayOf(elem), nil
		}
		return MapOf(elem), nil

	case "oneOf":
		if len(spec.Alternatives) == 0 {
			return nil, invalid(n, "oneOf needs at least one alternative")
		}
		alts := make([]*Descriptor, 0, len(spec.Alternatives))
		for i := range spec.Alternatives {
			d, err := parseDescriptor(&spec.Alternatives[i])
			if err != nil {
				return nil, err
			}
			alts = append(alts, d)
		}
		return OneOf(alts...), nil

	case "complex":
		c, ok := LookupCodec(spec.Codec)
		if !ok {
			return nil, invalid(n, "unknown codec %q", spec.Codec)
		}
		return Complex(c), nil

	default:
		return primitive(n, spec.Type)
	}
}

func primitive(n *yaml.Node, name string) (*Descriptor, error) {
	switch name {
	case "string":
		return String(), nil
	case "number":
		return Number(), nil
	case "boolean":
		return Boolean(), nil
	case "computed", "action", "method":
		return nil, invalid(n, "%s properties must be declared in Go", name)
	default:
		return nil, invalid(n, "unknown type %q", name)
	}
}

func invalid(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidSchema, n.Line, fmt.Sprintf(format, args...))
}
