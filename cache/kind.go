package cache

import (
	"fmt"
	"strings"
)

// Kind distinguishes plain prepared statements from callable (stored procedure) statements.
type Kind uint8

const (
	KindPrepared Kind = iota + 1
	KindCallable
)

var kindNames = map[Kind]string{
	KindPrepared: "prepared",
	KindCallable: "callable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) other() Kind {
	if k == KindPrepared {
		return KindCallable
	}
	return KindPrepared
}

func (k Kind) index() int { return int(k) - 1 }

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cache: unknown statement kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	v, err := parseEnum(text, kindNames, KindPrepared)
	if err != nil {
		return fmt.Errorf("cache: statement kind: %w", err)
	}
	*k = v
	return nil
}

// ResultSetType mirrors the cursor scrollability requested at compile time.
type ResultSetType uint8

const (
	ForwardOnly ResultSetType = iota
	ScrollInsensitive
	ScrollSensitive
)

var resultSetTypeNames = map[ResultSetType]string{
	ForwardOnly:       "forward_only",
	ScrollInsensitive: "scroll_insensitive",
	ScrollSensitive:   "scroll_sensitive",
}

func (t ResultSetType) String() string {
	if name, ok := resultSetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ResultSetType(%d)", uint8(t))
}

func (t ResultSetType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ResultSetType) UnmarshalText(text []byte) error {
	v, err := parseEnum(text, resultSetTypeNames, ForwardOnly)
	if err != nil {
		return fmt.Errorf("cache: result set type: %w", err)
	}
	*t = v
	return nil
}

// Concurrency mirrors whether result sets may be updated through the cursor.
type Concurrency uint8

const (
	ReadOnly Concurrency = iota
	Updatable
)

var concurrencyNames = map[Concurrency]string{
	ReadOnly:  "read_only",
	Updatable: "updatable",
}

func (c Concurrency) String() string {
	if name, ok := concurrencyNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Concurrency(%d)", uint8(c))
}

func (c Concurrency) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Concurrency) UnmarshalText(text []byte) error {
	v, err := parseEnum(text, concurrencyNames, ReadOnly)
	if err != nil {
		return fmt.Errorf("cache: concurrency: %w", err)
	}
	*c = v
	return nil
}

// GeneratedKeys controls whether the driver should make auto-generated keys available.
type GeneratedKeys uint8

const (
	NoGeneratedKeys GeneratedKeys = iota
	ReturnGeneratedKeys
)

var generatedKeysNames = map[GeneratedKeys]string{
	NoGeneratedKeys:     "none",
	ReturnGeneratedKeys: "return",
}

func (g GeneratedKeys) String() string {
	if name, ok := generatedKeysNames[g]; ok {
		return name
	}
	return fmt.Sprintf("GeneratedKeys(%d)", uint8(g))
}

func (g GeneratedKeys) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *GeneratedKeys) UnmarshalText(text []byte) error {
	v, err := parseEnum(text, generatedKeysNames, NoGeneratedKeys)
	if err != nil {
		return fmt.Errorf("cache: generated keys: %w", err)
	}
	*g = v
	return nil
}

// Options are the compile-time statement settings. The zero value is a forward-only,
// read-only statement without generated keys.
type Options struct {
	ResultSetType ResultSetType `yaml:"result_set_type,omitempty" json:"result_set_type,omitempty"`
	Concurrency   Concurrency   `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	GeneratedKeys GeneratedKeys `yaml:"generated_keys,omitempty" json:"generated_keys,omitempty"`
}

// IsDefault reports whether o is the zero value.
func (o Options) IsDefault() bool { return o == Options{} }

// Validate checks o against the compile primitives: a prepared statement takes either a
// result set type/concurrency pair or the generated-keys flag, a callable statement
// only takes the pair.
func (o Options) Validate(kind Kind) error {
	if _, ok := resultSetTypeNames[o.ResultSetType]; !ok {
		return &OptionsError{Field: "ResultSetType", Message: "unknown value " + o.ResultSetType.String()}
	}
	if _, ok := concurrencyNames[o.Concurrency]; !ok {
		return &OptionsError{Field: "Concurrency", Message: "unknown value " + o.Concurrency.String()}
	}
	if _, ok := generatedKeysNames[o.GeneratedKeys]; !ok {
		return &OptionsError{Field: "GeneratedKeys", Message: "unknown value " + o.GeneratedKeys.String()}
	}
	if o.GeneratedKeys == NoGeneratedKeys {
		return nil
	}
	if kind == KindCallable {
		return &OptionsError{Field: "GeneratedKeys", Message: "not supported for callable statements"}
	}
	if o.ResultSetType != ForwardOnly || o.Concurrency != ReadOnly {
		return &OptionsError{Field: "GeneratedKeys", Message: "cannot be combined with result set type or concurrency"}
	}
	return nil
}

func parseEnum[T comparable](text []byte, names map[T]string, empty T) (T, error) {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		return empty, nil
	}
	s = strings.ReplaceAll(s, "-", "_")
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown value %q", string(text))
}
