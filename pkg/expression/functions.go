package expression

import "strings"

// funcKind distinguishes how a function is written and called.
type funcKind int

const (
	kindInfix   funcKind = iota // binary operator written infix (&&, ||, ==, !=)
	kindUnary                   // one argument
	kindBinary                  // exactly two arguments
	kindVarArgs                 // zero or more arguments
	kindEmpty                   // zero arguments
)

// Func describes a function or operator of the expression language.
type Func struct {
	// Name is the rendered function name (`startsWith`, `and`, …).
	Name string

	// Op is the infix operator text, or "" for named functions.
	Op string

	// Kind selects arity and rendering rules.
	Kind funcKind
}

// Infix reports whether calls render as infix operator applications.
func (f *Func) Infix() bool { return f.Kind == kindInfix }

// The closed function set. Operators are reached through their operator
// text, named functions through the case-insensitive dispatch table below.
var (
	FnNot   = &Func{Name: "not", Op: "!", Kind: kindUnary}
	FnAnd   = &Func{Name: "and", Op: "&&", Kind: kindInfix}
	FnOr    = &Func{Name: "or", Op: "||", Kind: kindInfix}
	FnEq    = &Func{Name: "eq", Op: "==", Kind: kindInfix}
	FnNotEq = &Func{Name: "neq", Op: "!=", Kind: kindInfix}

	FnContains   = &Func{Name: "contains", Kind: kindBinary}
	FnStartsWith = &Func{Name: "startsWith", Kind: kindBinary}
	FnEndsWith   = &Func{Name: "endsWith", Kind: kindBinary}
	FnToJSON     = &Func{Name: "toJSON", Kind: kindUnary}
	FnFromJSON   = &Func{Name: "fromJSON", Kind: kindUnary}
	FnHashFiles  = &Func{Name: "hashFiles", Kind: kindVarArgs}
	FnSuccess    = &Func{Name: "success", Kind: kindEmpty}
	FnAlways     = &Func{Name: "always", Kind: kindEmpty}
	FnCancelled  = &Func{Name: "cancelled", Kind: kindEmpty}
	FnFailure    = &Func{Name: "failure", Kind: kindEmpty}
)

// infixFuncs maps operator text to the operator, used while folding token
// runs into trees.
var infixFuncs = map[string]*Func{
	"&&": FnAnd,
	"||": FnOr,
	"==": FnEq,
	"!=": FnNotEq,
}

// namedFuncs is the static dispatch table for function-name recognition,
// keyed by lowercased name. Populated once at program start; bare
// identifiers matching an entry parse as that function.
var namedFuncs = map[string]*Func{}

func init() {
	for _, f := range []*Func{
		FnContains, FnStartsWith, FnEndsWith,
		FnToJSON, FnFromJSON, FnHashFiles,
		FnSuccess, FnAlways, FnCancelled, FnFailure,
	} {
		namedFuncs[strings.ToLower(f.Name)] = f
	}
}
