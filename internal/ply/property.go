// Package ply decodes point clouds stored as binary little-endian PLY files.
//
// Only the vertex element is decoded. Positions are narrowed to float32 and
// colors to 8 bits per channel; every other vertex property is skipped by
// width.
package ply

// Property identifies how one vertex field is stored on disk and what it
// contributes to the decoded point.
type Property uint8

const (
	PropertyInvalid Property = iota
	PropertyR8
	PropertyG8
	PropertyB8
	PropertyA8
	PropertyR16
	PropertyG16
	PropertyB16
	PropertyA16
	PropertyX32
	PropertyY32
	PropertyZ32
	PropertyX64
	PropertyY64
	PropertyZ64
	PropertyPad8
	PropertyPad16
	PropertyPad32
	PropertyPad64
)

var propertySizes = [...]int{
	PropertyInvalid: 0,
	PropertyR8:      1,
	PropertyG8:      1,
	PropertyB8:      1,
	PropertyA8:      1,
	PropertyR16:     2,
	PropertyG16:     2,
	PropertyB16:     2,
	PropertyA16:     2,
	PropertyX32:     4,
	PropertyY32:     4,
	PropertyZ32:     4,
	PropertyX64:     8,
	PropertyY64:     8,
	PropertyZ64:     8,
	PropertyPad8:    1,
	PropertyPad16:   2,
	PropertyPad32:   4,
	PropertyPad64:   8,
}

var propertyNames = [...]string{
	PropertyInvalid: "invalid",
	PropertyR8:      "red8",
	PropertyG8:      "green8",
	PropertyB8:      "blue8",
	PropertyA8:      "alpha8",
	PropertyR16:     "red16",
	PropertyG16:     "green16",
	PropertyB16:     "blue16",
	PropertyA16:     "alpha16",
	PropertyX32:     "x32",
	PropertyY32:     "y32",
	PropertyZ32:     "z32",
	PropertyX64:     "x64",
	PropertyY64:     "y64",
	PropertyZ64:     "z64",
	PropertyPad8:    "pad8",
	PropertyPad16:   "pad16",
	PropertyPad32:   "pad32",
	PropertyPad64:   "pad64",
}

// Size returns the on-disk width of p in bytes. PropertyInvalid and values
// outside the catalog report 0; neither can appear in a parsed header.
func (p Property) Size() int {
	if int(p) >= len(propertySizes) {
		return 0
	}
	return propertySizes[p]
}

func (p Property) String() string {
	if int(p) >= len(propertyNames) {
		return "unknown"
	}
	return propertyNames[p]
}

// IsPad reports whether p is skipped during decoding.
func (p Property) IsPad() bool {
	return p >= PropertyPad8 && p <= PropertyPad64
}

// provisional maps a reserved vertex property name to the role it plays in a
// decoded point. Colors start at 8 bits and positions at 32 bits; the declared
// storage type may widen them.
func provisional(name string) Property {
	switch name {
	case "red":
		return PropertyR8
	case "green":
		return PropertyG8
	case "blue":
		return PropertyB8
	case "alpha":
		return PropertyA8
	case "x":
		return PropertyX32
	case "y":
		return PropertyY32
	case "z":
		return PropertyZ32
	}
	return PropertyInvalid
}

// resolve combines a provisional role with a declared storage type. The
// returned bool is false when the type token is not a PLY scalar type.
func resolve(role Property, typ string) (Property, bool) {
	switch typ {
	case "char", "uchar", "int8", "uint8":
		if role == PropertyInvalid {
			return PropertyPad8, true
		}
		return role, true

	case "short", "ushort", "int16", "uint16":
		switch role {
		case PropertyInvalid:
			return PropertyPad16, true
		case PropertyR8:
			return PropertyR16, true
		case PropertyG8:
			return PropertyG16, true
		case PropertyB8:
			return PropertyB16, true
		case PropertyA8:
			return PropertyA16, true
		}
		return role, true

	case "int", "uint", "float", "int32", "uint32", "float32":
		if role == PropertyInvalid {
			return PropertyPad32, true
		}
		return role, true

	case "int64", "uint64", "double", "float64":
		switch role {
		case PropertyInvalid:
			return PropertyPad64, true
		case PropertyX32:
			return PropertyX64, true
		case PropertyY32:
			return PropertyY64, true
		case PropertyZ32:
			return PropertyZ64, true
		}
		return role, true
	}
	return PropertyInvalid, false
}

// scalarSize is the width implied by a PLY scalar type token.
func scalarSize(typ string) int {
	switch typ {
	case "char", "uchar", "int8", "uint8":
		return 1
	case "short", "ushort", "int16", "uint16":
		return 2
	case "int", "uint", "float", "int32", "uint32", "float32":
		return 4
	case "int64", "uint64", "double", "float64":
		return 8
	}
	return 0
}
