package schema

import "sort"

// Target is the view of an observable node handed to computed, action and
// method functions. It is satisfied by *observable.Node.
type Target interface {
	Get(key string) (any, error)
	Set(key string, value any) error
	Delete(key string) error
	Path() []string
}

// ComputeFunc derives a computed property from its node. It must not mutate.
type ComputeFunc func(self Target) (any, error)

// ActionFunc implements an action or method property.
type ActionFunc func(self Target, args ...any) (any, error)

// Props maps property names to their descriptors.
type Props map[string]*Descriptor

// Descriptor is an immutable schema node describing one property.
//
// Descriptors are built with the kind constructors (String, Object, ...) and
// the Readonly/Optional modifiers, which return modified copies. The zero
// value is a descriptor of KindInvalid.
type Descriptor struct {
	kind     Kind
	readonly bool
	optional bool

	properties Props
	names      []string
	elem       *Descriptor
	alts       []*Descriptor
	codec      *Codec
	compute    ComputeFunc
	action     ActionFunc

	// ref resolves lazily to the descriptor this one stands for, which is how
	// self-referential schemas are expressed.
	ref func() *Descriptor
}

// New creates a descriptor of an arbitrary kind. Most callers want one of the
// kind constructors instead; New exists for schema parsers that produce
// descriptors from external input, including kinds the engine does not know.
func New(kind Kind) *Descriptor {
	return &Descriptor{kind: kind}
}

// String describes a string property.
func String() *Descriptor { return New(KindString) }

// Number describes a number property.
func Number() *Descriptor { return New(KindNumber) }

// Boolean describes a boolean property.
func Boolean() *Descriptor { return New(KindBoolean) }

// Object describes a nested object with the given declared properties.
func Object(props Props) *Descriptor {
	d := New(KindObject)
	d.properties = make(Props, len(props))
	d.names = make([]string, 0, len(props))
	for name, p := range props {
		d.properties[name] = p
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)
	return d
}

// ArrayOf describes an ordered list whose elements are described by elem.
func ArrayOf(elem *Descriptor) *Descriptor {
	d := New(KindArrayOf)
	d.elem = elem
	return d
}

// MapOf describes a string-keyed map whose values are described by elem.
func MapOf(elem *Descriptor) *Descriptor {
	d := New(KindMapOf)
	d.elem = elem
	return d
}

// OneOf describes a value matching the first acceptable alternative.
func OneOf(alts ...*Descriptor) *Descriptor {
	d := New(KindOneOf)
	d.alts = append([]*Descriptor(nil), alts...)
	return d
}

// Complex describes a domain value stored as-is and converted with codec at
// snapshot boundaries.
func Complex(codec Codec) *Descriptor {
	d := New(KindComplex)
	c := codec
	d.codec = &c
	return d
}

// Computed describes a derived, cached property.
func Computed(fn ComputeFunc) *Descriptor {
	d := New(KindComputed)
	d.compute = fn
	return d
}

// Action describes a mutator that runs inside an action scope.
func Action(fn ActionFunc) *Descriptor {
	d := New(KindAction)
	d.action = fn
	return d
}

// Method describes a plain function property. Unlike Action it does not open
// an action scope when called.
func Method(fn ActionFunc) *Descriptor {
	d := New(KindMethod)
	d.action = fn
	return d
}

// Ref defers to the descriptor returned by resolve, evaluated on each access.
// It lets an object declare properties of its own type:
//
//	var person *schema.Descriptor
//	person = schema.Object(schema.Props{
//	    "name":   schema.String(),
//	    "friend": schema.Optional(schema.Ref(func() *schema.Descriptor { return person })),
//	})
func Ref(resolve func() *Descriptor) *Descriptor {
	return &Descriptor{ref: resolve}
}

// Readonly returns a copy of d that rejects writes after attachment.
func Readonly(d *Descriptor) *Descriptor {
	c := *d
	c.readonly = true
	return &c
}

// Optional returns a copy of d that may be absent and may be deleted.
func Optional(d *Descriptor) *Descriptor {
	c := *d
	c.optional = true
	return &c
}

func (d *Descriptor) target() *Descriptor {
	seen := 0
	for d.ref != nil {
		next := d.ref()
		if next == nil || seen > 64 {
			return &Descriptor{}
		}
		d = next
		seen++
	}
	return d
}

// Kind returns the property kind.
func (d *Descriptor) Kind() Kind { return d.target().kind }

// IsReadonly reports whether the property rejects writes after attachment.
func (d *Descriptor) IsReadonly() bool { return d.readonly }

// IsOptional reports whether the property may be absent.
func (d *Descriptor) IsOptional() bool { return d.optional }

// Property returns the descriptor of a declared property, or nil.
func (d *Descriptor) Property(name string) *Descriptor {
	return d.target().properties[name]
}

// Lookup returns the descriptor reached by following path from d: property
// names through objects, element keys through arrays and maps. It returns
// nil when the path leaves the schema or passes through a oneOf, whose
// alternative depends on the value.
func (d *Descriptor) Lookup(path []string) *Descriptor {
	for _, key := range path {
		if d == nil {
			return nil
		}
		switch d.Kind() {
		case KindObject:
			d = d.Property(key)
		case KindArrayOf, KindMapOf:
			d = d.Elem()
		default:
			return nil
		}
	}
	return d
}

// Names returns the declared property names of an object descriptor, sorted.
func (d *Descriptor) Names() []string {
	return append([]string(nil), d.target().names...)
}

// Elem returns the element descriptor of an arrayOf or mapOf descriptor.
func (d *Descriptor) Elem() *Descriptor { return d.target().elem }

// Alternatives returns the alternatives of a oneOf descriptor.
func (d *Descriptor) Alternatives() []*Descriptor {
	return append([]*Descriptor(nil), d.target().alts...)
}

// Codec returns the codec of a complex descriptor.
func (d *Descriptor) Codec() (Codec, bool) {
	t := d.target()
	if t.codec == nil {
		return Codec{}, false
	}
	return *t.codec, true
}

// Compute returns the derivation of a computed descriptor.
func (d *Descriptor) Compute() ComputeFunc { return d.target().compute }

// Func returns the function of an action or method descriptor.
func (d *Descriptor) Func() ActionFunc { return d.target().action }
