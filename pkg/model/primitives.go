package model

// Primitive describes a C++ builtin the bridge can pass by value with
// no conversion beyond a width-preserving cast.
type Primitive struct {
	// Cpp is the canonical C++ spelling.
	Cpp string
	// Go is the bridge-side Go type.
	Go string
	// C is the spelling used in the extern "C" shim signatures.
	C string
}

// primitives maps every accepted C++ builtin spelling to its bridge
// mapping. Widths follow the LP64 model; the generated shim carries
// static_asserts so a mismatched platform fails at native compile time
// rather than corrupting data at runtime.
var primitives = map[string]Primitive{
	"void": {Cpp: "void", Go: "", C: "void"},
	"bool": {Cpp: "bool", Go: "bool", C: "bool"},

	"char":          {Cpp: "char", Go: "int8", C: "char"},
	"signed char":   {Cpp: "signed char", Go: "int8", C: "signed char"},
	"unsigned char": {Cpp: "unsigned char", Go: "uint8", C: "unsigned char"},

	"short":          {Cpp: "short", Go: "int16", C: "short"},
	"unsigned short": {Cpp: "unsigned short", Go: "uint16", C: "unsigned short"},
	"int":            {Cpp: "int", Go: "int32", C: "int"},
	"unsigned":       {Cpp: "unsigned int", Go: "uint32", C: "unsigned int"},
	"unsigned int":   {Cpp: "unsigned int", Go: "uint32", C: "unsigned int"},
	"long":           {Cpp: "long", Go: "int64", C: "long"},
	"unsigned long":  {Cpp: "unsigned long", Go: "uint64", C: "unsigned long"},
	"long long":      {Cpp: "long long", Go: "int64", C: "long long"},
	"unsigned long long": {
		Cpp: "unsigned long long", Go: "uint64", C: "unsigned long long"},

	"float":  {Cpp: "float", Go: "float32", C: "float"},
	"double": {Cpp: "double", Go: "float64", C: "double"},

	"int8_t":   {Cpp: "int8_t", Go: "int8", C: "int8_t"},
	"int16_t":  {Cpp: "int16_t", Go: "int16", C: "int16_t"},
	"int32_t":  {Cpp: "int32_t", Go: "int32", C: "int32_t"},
	"int64_t":  {Cpp: "int64_t", Go: "int64", C: "int64_t"},
	"uint8_t":  {Cpp: "uint8_t", Go: "uint8", C: "uint8_t"},
	"uint16_t": {Cpp: "uint16_t", Go: "uint16", C: "uint16_t"},
	"uint32_t": {Cpp: "uint32_t", Go: "uint32", C: "uint32_t"},
	"uint64_t": {Cpp: "uint64_t", Go: "uint64", C: "uint64_t"},

	"size_t":    {Cpp: "size_t", Go: "uint64", C: "size_t"},
	"ssize_t":   {Cpp: "ssize_t", Go: "int64", C: "ssize_t"},
	"ptrdiff_t": {Cpp: "ptrdiff_t", Go: "int64", C: "ptrdiff_t"},
	"intptr_t":  {Cpp: "intptr_t", Go: "int64", C: "intptr_t"},
	"uintptr_t": {Cpp: "uintptr_t", Go: "uint64", C: "uintptr_t"},

	// std:: spellings of the fixed-width aliases show up frequently.
	"std::size_t":    {Cpp: "size_t", Go: "uint64", C: "size_t"},
	"std::ptrdiff_t": {Cpp: "ptrdiff_t", Go: "int64", C: "ptrdiff_t"},
	"std::int8_t":    {Cpp: "int8_t", Go: "int8", C: "int8_t"},
	"std::int16_t":   {Cpp: "int16_t", Go: "int16", C: "int16_t"},
	"std::int32_t":   {Cpp: "int32_t", Go: "int32", C: "int32_t"},
	"std::int64_t":   {Cpp: "int64_t", Go: "int64", C: "int64_t"},
	"std::uint8_t":   {Cpp: "uint8_t", Go: "uint8", C: "uint8_t"},
	"std::uint16_t":  {Cpp: "uint16_t", Go: "uint16", C: "uint16_t"},
	"std::uint32_t":  {Cpp: "uint32_t", Go: "uint32", C: "uint32_t"},
	"std::uint64_t":  {Cpp: "uint64_t", Go: "uint64", C: "uint64_t"},
}

// LookupPrimitive returns the bridge mapping for a C++ builtin
// spelling, if any.
func LookupPrimitive(name string) (Primitive, bool) {
	p, ok := primitives[name]
	return p, ok
}
