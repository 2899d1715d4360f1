// Package strategy decides, per file, which optimization methods to attempt
// and in what order. It is pure decision logic: nothing here touches the
// filesystem or spawns processes.
package strategy

// Kind distinguishes the two strategy variants.
type Kind int

const (
	// KindExternal invokes a standalone optimizer binary.
	KindExternal Kind = iota
	// KindBuiltin re-encodes through the in-process codec.
	KindBuiltin
)

// Strategy is one concrete method for optimizing a single file: either an
// external-tool invocation descriptor or the built-in codec marker.
//
// Args is the argv template, executable first. The runner substitutes the
// {input}, {output}, and {quality} placeholders at invocation time. When
// InPlace is set the tool rewrites {output} in place, so the runner seeds
// {output} with the input bytes before invoking it.
type Strategy struct {
	Kind    Kind
	Tool    string
	Args    []string
	InPlace bool
}

// Builtin returns the built-in codec fallback marker.
func Builtin() Strategy {
	return Strategy{Kind: KindBuiltin}
}

// Name identifies the strategy in outcomes and logs.
func (s Strategy) Name() string {
	if s.Kind == KindBuiltin {
		return "builtin"
	}
	return s.Tool
}
