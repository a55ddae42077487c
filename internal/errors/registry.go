package errors

import (
	"sort"
	"sync"

	"github.com/vango-dev/statetree/pkg/codec"
	"github.com/vango-dev/statetree/pkg/observable"
	"github.com/vango-dev/statetree/pkg/schema"
)

type sentinel struct {
	err  error
	code string
}

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

var (
	registryMu sync.RWMutex

	// registry maps error codes to their templates.
	registry = map[string]ErrorTemplate{
		// Write path (S001-S009), in the order writes are checked.
		"S001": {
			Category:   CategoryWrite,
			Message:    "Undefined written",
			Detail:     "Only null is a valid empty value. Undefined cannot be stored in a tree.",
			Suggestion: "Write nil, or delete the property if it is optional.",
		},
		"S002": {
			Category:   CategoryComputation,
			Message:    "Mutation inside a computed property",
			Detail:     "Computed properties derive values from state and must not write to any tree while they are evaluated.",
			Suggestion: "Move the write into an action.",
		},
		"S003": {
			Category: CategoryWrite,
			Message:  "Method reassigned",
			Detail:   "Actions, methods and computed properties are part of the schema and cannot be replaced at runtime.",
		},
		"S004": {
			Category: CategorySchema,
			Message:  "Unrecognized property kind",
			Detail:   "The descriptor of this property has a kind the engine has no handler for.",
		},
		"S005": {
			Category:   CategoryWrite,
			Message:    "Property is not declared",
			Detail:     "Object descriptors are closed. Only declared properties may be read or written.",
			Suggestion: "Declare the property in the schema, or use a map for open key sets.",
		},
		"S006": {
			Category: CategoryWrite,
			Message:  "Reserved key written",
			Detail:   "getSnapshot, applySnapshot, applyDiffs, use and getRoot name virtual operations and cannot hold state.",
		},
		"S007": {
			Category:   CategoryWrite,
			Message:    "Readonly property written",
			Detail:     "Readonly properties may only be given a value when the tree or the containing object is created. Required properties cannot be deleted.",
			Suggestion: "Initialise the property in the value passed to observable.New.",
		},
		"S008": {
			Category: CategoryWrite,
			Message:  "Key is not a plain string",
			Detail:   "Introspection keys cannot be written, and diff paths must consist of strings only.",
		},
		"S009": {
			Category:   CategoryWrite,
			Message:    "Mutation outside of an action",
			Detail:     "Every write must happen while an action scope is open on the root of the tree.",
			Suggestion: "Wrap the write in node.Run(func() error { ... }).",
		},

		// Attach-time validation (S010-S015).
		"S010": {
			Category: CategoryAttach,
			Message:  "Extraneous property",
			Detail:   "The value carries a property its object descriptor does not declare.",
		},
		"S011": {
			Category:   CategoryAttach,
			Message:    "Required property missing",
			Detail:     "Every property that is not optional, computed or callable must be present when an object is attached.",
			Suggestion: "Supply the property, or mark it optional in the schema.",
		},
		"S012": {
			Category: CategoryAttach,
			Message:  "Non-container assigned to a structured property",
			Detail:   "Object, array and map properties accept only plain containers or nodes.",
		},
		"S013": {
			Category: CategoryAttach,
			Message:  "Non-string key",
			Detail:   "Containers attached to a tree, and documents decoded from CBOR, must use string keys only.",
		},
		"S014": {
			Category: CategoryAttach,
			Message:  "Value does not match property kind",
			Detail:   "Strings, finite numbers, booleans and null are checked against their declared kind.",
		},
		"S015": {
			Category: CategoryAttach,
			Message:  "Value matches no alternative",
			Detail:   "None of the alternatives of a oneOf property accepts the value.",
		},

		// Replay and calls (S016-S018).
		"S016": {
			Category:   CategoryReplay,
			Message:    "Diff path does not resolve",
			Detail:     "Every element of a diff path but the last must name a structured child of the receiving node.",
			Suggestion: "Replay diffs against a tree with the same schema and history as the source.",
		},
		"S017": {
			Category: CategoryWrite,
			Message:  "Property is not callable",
			Detail:   "Only action and method properties can be called.",
		},
		"S018": {
			Category: CategoryComputation,
			Message:  "Circular computed property",
			Detail:   "A computed property read itself, directly or through other computed properties, while being evaluated.",
		},

		// Schema and codec (C001-C009).
		"C001": {
			Category:   CategorySchema,
			Message:    "Invalid schema",
			Detail:     "The schema document could not be turned into a descriptor.",
			Suggestion: "Check the kind names and that every property is a mapping or a kind name.",
		},
		"C002": {
			Category: CategorySchema,
			Message:  "Complex codec already registered",
		},
		"C003": {
			Category:   CategoryCodec,
			Message:    "Unknown wire format",
			Suggestion: "Use json or cbor.",
		},

		// Configuration (C010-C019).
		"C010": {
			Category:   CategoryConfig,
			Message:    "Configuration file not found",
			Suggestion: "Create statetree.yaml or pass --config.",
		},
		"C011": {
			Category:   CategoryConfig,
			Message:    "Invalid configuration file",
			Suggestion: "Check that the file is valid YAML.",
		},
		"C012": {
			Category: CategoryConfig,
			Message:  "Configuration value out of range",
		},
	}

	// sentinels is consulted in order by CodeOf.
	sentinels = []sentinel{
		{observable.ErrInvalidBottomValue, "S001"},
		{observable.ErrMutationDuringComputation, "S002"},
		{observable.ErrMethodReassignment, "S003"},
		{observable.ErrUnrecognizedKind, "S004"},
		{observable.ErrUndeclaredProperty, "S005"},
		{observable.ErrReservedKey, "S006"},
		{observable.ErrReadonlyViolation, "S007"},
		{observable.ErrNonStringKey, "S008"},
		{observable.ErrMutationOutsideAction, "S009"},
		{observable.ErrExtraneousProperty, "S010"},
		{observable.ErrRequiredPropertyMissing, "S011"},
		{observable.ErrNonObjectAssigned, "S012"},
		{observable.ErrSymbolKeyForbidden, "S013"},
		{observable.ErrKindMismatch, "S014"},
		{observable.ErrNoMatchingAlternative, "S015"},
		{observable.ErrInvalidPath, "S016"},
		{observable.ErrNotCallable, "S017"},
		{observable.ErrCircularComputation, "S018"},
		{schema.ErrInvalidSchema, "C001"},
		{schema.ErrCodecExists, "C002"},
		{codec.ErrUnknownFormat, "C003"},
	}
)

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for a code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces a code. A non-nil sentinel is matched by
// FromError after the built-in ones.
func Register(code string, template ErrorTemplate, sentinelErr error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = template
	if sentinelErr != nil {
		sentinels = append(sentinels, sentinel{err: sentinelErr, code: code})
	}
}
