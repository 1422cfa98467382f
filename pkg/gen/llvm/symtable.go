package llvmgen

import (
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
)

// SymbolTable maps parameter names to their IR values inside the function
// being lowered. It is flat: the language has no nested bindings. Values
// are only meaningful until the next Reset.
type SymbolTable struct {
	values map[string]value.Value
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		values: make(map[string]value.Value),
	}
}

func (s *SymbolTable) Get(name string) (value.Value, error) {
	if v, ok := s.values[name]; ok {
		return v, nil
	}

	return nil, errors.New("Undefined variable")
}

// Declare binds name to v. A later binding of the same name replaces the
// earlier one.
func (s *SymbolTable) Declare(name string, v value.Value) {
	s.values[name] = v
}

func (s *SymbolTable) Reset() {
	for name := range s.values {
		delete(s.values, name)
	}
}

func (s *SymbolTable) Len() int {
	return len(s.values)
}
