package znflow

// combineOptions configures Combine. Attribute, when set, is read off
// every Task argument via Ref before combining (the original's
// `combine(*args, attribute=...)`); strict, when set via Strict(),
// rejects every argument that does not resolve to a Reference instead of
// dropping it from the result.
type combineOptions struct {
	attribute string
	strict    bool
	asMapKey  string
}

// CombineOption configures a single Combine call.
type CombineOption func(*combineOptions)

// WithAttribute gathers `name` off each Task argument (via Ref) instead of
// combining the arguments themselves.
func WithAttribute(name string) CombineOption {
	return func(o *combineOptions) { o.attribute = name }
}

// Strict requires every argument to resolve to a Reference, failing with
// a TypeErrorDetail the instant one doesn't; together with WithAttribute
// it also rejects any argument that is not a Task. Combine is lenient by
// default: with WithAttribute, a non-Task Reference is used as-is rather
// than having the attribute read off it, and any argument that is not a
// Reference is dropped from the result (SPEC_FULL.md §5: "Combine
// strict/lenient mode").
func Strict() CombineOption {
	return func(o *combineOptions) { o.strict = true }
}

// AsMapKey reshapes the combined result into a map keyed by `attribute`,
// read off each item's source task at resolve time, instead of leaving
// the items as an ordered list (spec.md §4.7). Duplicate keys are a
// ValueErrorDetail, raised when the resolver actually reshapes the
// result, since the key values aren't known until run time.
func AsMapKey(attribute string) CombineOption {
	return func(o *combineOptions) { o.asMapKey = attribute }
}

// Combine flattens several list-typed references into one
// CombinedConnection, the Go stand-in for the original's
// `sum(outs, [])`-based combine(). A *CombinedConnection argument is
// spliced in rather than nested, so Combine(Combine(a, b), c) and
// Combine(a, b, c) produce equal item sequences.
//
// A single []any argument is unpacked, mirroring combine([a, b, c]) and
// combine(a, b, c) being equivalent entry points in the original.
func Combine(args []any, opts ...CombineOption) (*CombinedConnection, error) {
	cfg := combineOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(args) == 1 {
		if unpacked, ok := args[0].([]any); ok {
			args = unpacked
		}
	}

	out := &CombinedConnection{Index: -1, MapKeyAttribute: cfg.asMapKey}
	for _, arg := range args {
		value := arg
		if cfg.attribute != "" {
			if t, ok := arg.(Task); ok {
				value = Ref(t, cfg.attribute)
			} else if cfg.strict {
				return nil, newTypeError("Combine: argument %v is not a Task, cannot read attribute %q", arg, cfg.attribute)
			}
		}

		switch v := value.(type) {
		case *CombinedConnection:
			out.Items = append(out.Items, v.Items...)
		case Reference:
			out.Items = append(out.Items, v)
		default:
			if cfg.strict {
				return nil, newTypeError("Combine: argument %v (attribute=%q) is not a Reference", arg, cfg.attribute)
			}
			continue
		}
	}
	return out, nil
}

// Concat appends b's items after a's, flattening nested CombinedConnections
// — the explicit free-function stand-in for the original's `a + b`
// operator overload between two combinable references (spec.md §9,
// "Operator overloading").
func Concat(a, b Reference) (*CombinedConnection, error) {
	return Combine([]any{a, b})
}
