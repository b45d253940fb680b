package password

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

const (
	maxParamCount       = 16
	maxParamNameLength  = 32
	maxParamValueLength = 64

	versionParam = "v"
)

// Param is a single name=value pair of a PHC parameter segment.
type Param struct {
	Name  string
	Value string
}

// Params is the ordered parameter segment of a PHC string. Insertion order is
// preserved so a parsed hash serializes back to the exact input.
//
// The zero value is an empty parameter list. Params values are never mutated
// in place: With returns a new list.
type Params struct {
	pairs []Param
}

// NewParams builds a parameter list from pairs, rejecting malformed or
// duplicate names.
func NewParams(pairs ...Param) (Params, error) {
	var p Params
	for _, pair := range pairs {
		next, err := p.With(pair.Name, pair.Value)
		if err != nil {
			return Params{}, err
		}
		p = next
	}
	return p, nil
}

// With returns a copy of p with name=value appended. The name "v" is
// reserved for the version segment.
func (p Params) With(name, value string) (Params, error) {
	if !validParamName(name) {
		return Params{}, fmt.Errorf("%w: invalid parameter name %q", ErrInvalidPasswordHash, name)
	}
	if name == versionParam {
		return Params{}, fmt.Errorf("%w: parameter name %q is reserved", ErrInvalidPasswordHash, name)
	}
	if !validParamValue(value) {
		return Params{}, fmt.Errorf("%w: invalid value for parameter %q", ErrInvalidPasswordHash, name)
	}
	if _, exists := p.Get(name); exists {
		return Params{}, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidPasswordHash, name)
	}
	if len(p.pairs) >= maxParamCount {
		return Params{}, fmt.Errorf("%w: too many parameters", ErrInvalidPasswordHash)
	}

	pairs := make([]Param, len(p.pairs), len(p.pairs)+1)
	copy(pairs, p.pairs)
	return Params{pairs: append(pairs, Param{Name: name, Value: value})}, nil
}

// WithDecimal appends an unsigned decimal parameter.
func (p Params) WithDecimal(name string, value uint32) (Params, error) {
	return p.With(name, strconv.FormatUint(uint64(value), 10))
}

// Get returns the raw value stored under name.
func (p Params) Get(name string) (string, bool) {
	for _, pair := range p.pairs {
		if pair.Name == name {
			return pair.Value, true
		}
	}
	return "", false
}

// Decimal reads name as an unsigned 32-bit decimal. ok is false when the
// parameter is absent; a present but malformed value returns an ErrConfig error.
func (p Params) Decimal(name string) (value uint32, ok bool, err error) {
	raw, ok := p.Get(name)
	if !ok {
		return 0, false, nil
	}
	v, err := parseDecimal(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%w: parameter %q is not a decimal", ErrConfig, name)
	}
	return v, true, nil
}

// Len returns the number of pairs.
func (p Params) Len() int {
	return len(p.pairs)
}

// All iterates the pairs in insertion order.
func (p Params) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range p.pairs {
			if !yield(pair.Name, pair.Value) {
				return
			}
		}
	}
}

// String renders the comma-joined name=value form used inside a PHC string.
func (p Params) String() string {
	var b strings.Builder
	for i, pair := range p.pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(pair.Name)
		b.WriteByte('=')
		b.WriteString(pair.Value)
	}
	return b.String()
}

// Equal reports whether both lists hold the same pairs in the same order.
func (p Params) Equal(other Params) bool {
	if len(p.pairs) != len(other.pairs) {
		return false
	}
	for i := range p.pairs {
		if p.pairs[i] != other.pairs[i] {
			return false
		}
	}
	return true
}

func parseParams(segment string) (Params, error) {
	var p Params
	for entry := range strings.SplitSeq(segment, ",") {
		name, value, found := strings.Cut(entry, "=")
		if !found {
			return Params{}, fmt.Errorf("%w: malformed parameter %q", ErrInvalidPasswordHash, entry)
		}
		next, err := p.With(name, value)
		if err != nil {
			return Params{}, err
		}
		p = next
	}
	return p, nil
}

// parseDecimal accepts digits only with no sign and no leading zeros.
func parseDecimal(s string) (uint32, error) {
	if s == "" || len(s) > 10 {
		return 0, strconv.ErrSyntax
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func validParamName(name string) bool {
	if name == "" || len(name) > maxParamNameLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}

func validParamValue(value string) bool {
	if value == "" || len(value) > maxParamValueLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '/' || c == '+' || c == '.' || c == '-') {
			return false
		}
	}
	return true
}
