package frame

// Kind identifies the value type stored in a column.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindDatetime
	KindCategory
)

var kindNames = map[Kind]string{
	KindInt:      "int64",
	KindFloat:    "float64",
	KindString:   "string",
	KindBool:     "bool",
	KindDatetime: "datetime",
	KindCategory: "category",
}

// String returns the dtype-like name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, ErrUnknownKind
}
