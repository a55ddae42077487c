package schema

// Kind tags a Descriptor with the property kind it describes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBoolean
	KindObject
	KindArrayOf
	KindMapOf
	KindOneOf
	KindComplex
	KindComputed
	KindAction
	KindMethod
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindArrayOf:
		return "arrayOf"
	case KindMapOf:
		return "mapOf"
	case KindOneOf:
		return "oneOf"
	case KindComplex:
		return "complex"
	case KindComputed:
		return "computed"
	case KindAction:
		return "action"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindString && k <= KindMethod
}

// Structured reports whether values of this kind are wrapped in their own
// observable node.
func (k Kind) Structured() bool {
	return k == KindObject || k == KindArrayOf || k == KindMapOf
}

// Callable reports whether the kind describes behaviour rather than state.
// Callable properties are never stored, snapshotted or required.
func (k Kind) Callable() bool {
	return k == KindComputed || k == KindAction || k == KindMethod
}
