package query

import (
	"hash/fnv"

	language "github.com/hanpama/chainql/internal/language"
)

// shapeHash fingerprints the structure of an operation: operation
// type, field names, argument names, and nesting, in document order.
// Argument values and aliases are excluded so that reparameterized
// runs of one query shape hash alike; admission control keys its
// statistics on this value.
func shapeHash(doc *language.QueryDocument, op *language.OperationDefinition) uint64 {
	h := fnv.New64a()
	h.Write([]byte(op.Operation))
	hashSelectionSet(h, doc, op.SelectionSet)
	return h.Sum64()
}

type hash64 interface {
	Write(p []byte) (int, error)
	Sum64() uint64
}

func hashSelectionSet(h hash64, doc *language.QueryDocument, sel language.SelectionSet) {
	h.Write([]byte{'('})
	for _, s := range sel {
		switch s := s.(type) {
		case *language.Field:
			h.Write([]byte(s.Name))
			for _, arg := range s.Arguments {
				h.Write([]byte{'@'})
				h.Write([]byte(arg.Name))
			}
			hashSelectionSet(h, doc, s.SelectionSet)
		case *language.InlineFragment:
			h.Write([]byte("..."))
			h.Write([]byte(s.TypeCondition))
			hashSelectionSet(h, doc, s.SelectionSet)
		case *language.FragmentSpread:
			if frag := doc.Fragments.ForName(s.Name); frag != nil {
				h.Write([]byte("..."))
				h.Write([]byte(frag.TypeCondition))
				hashSelectionSet(h, doc, frag.SelectionSet)
			}
		}
	}
	h.Write([]byte{')'})
}
