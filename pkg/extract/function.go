package extract

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// extractFunction builds a RawFunction from a declaration or
// function_definition node. methodOf is the qualified record name when
// extracting inside a class body, "" for free functions. Returns false
// when the declarator carries no usable identifier.
func (w *walker) extractFunction(node, fd *ts.Node, ns []string, methodOf string) (RawFunction, bool) {
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return RawFunction{}, false
	}

	simpleName := nameNode.Utf8Text(w.src)
	kind := KindFunction
	switch nameNode.Kind() {
	case "destructor_name":
		kind = KindDestructor
		simpleName = strings.TrimPrefix(simpleName, "~")
	case "operator_name":
		kind = KindOperator
	case "identifier", "field_identifier", "qualified_identifier":
		// Constructors have no return type and share the record's name.
		if methodOf != "" && simpleName == lastComponent(methodOf) {
			kind = KindConstructor
		}
	default:
		return RawFunction{}, false
	}

	fn := RawFunction{
		Kind:      kind,
		MethodOf:  methodOf,
		DeclOrder: w.nextOrder(),
		Loc:       w.loc(node),
	}
	if methodOf != "" {
		fn.Name = methodOf + "::" + simpleName
	} else {
		fn.Name = qualify(ns, simpleName)
	}

	// Return type: absent for constructors/destructors.
	if kind == KindFunction || kind == KindOperator {
		ret := w.returnType(node, fd)
		if !ret.IsVoid() {
			fn.Returns = &ret
		}
	}

	fn.Params, fn.Variadic = w.extractParams(fd)

	// Trailing const qualifier makes a const method.
	for i := uint(0); i < fd.NamedChildCount(); i++ {
		child := fd.NamedChild(i)
		if child.Kind() == "type_qualifier" && child.Utf8Text(w.src) == "const" {
			fn.Const = true
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "virtual", "virtual_function_specifier":
			fn.Virtual = true
		case "storage_class_specifier":
			if child.Utf8Text(w.src) == "static" {
				fn.Static = true
			}
		}
	}

	if fn.Virtual && isPureVirtual(node, w.src) {
		fn.PureVirtual = true
	}

	return fn, true
}

// returnType parses the declared return type, applying any pointer or
// reference declarators that sit between the declaration and the
// function_declarator (e.g. `int* f()`, `const T& g()`).
func (w *walker) returnType(node, fd *ts.Node) RawType {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return Named("void")
	}
	ret := w.parseTypeSpecifier(typeNode)

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "type_qualifier" && child.Utf8Text(w.src) == "const" {
			ret.Const = true
		}
	}

	decl := node.ChildByFieldName("declarator")
	for decl != nil && decl.Id() != fd.Id() {
		switch decl.Kind() {
		case "pointer_declarator":
			ret = PointerTo(ret)
		case "reference_declarator":
			if strings.HasPrefix(decl.Utf8Text(w.src), "&&") {
				inner := ret
				ret = RawType{Shape: ShapeRValueRef, Inner: &inner}
			} else {
				inner := ret
				ret = RawType{Shape: ShapeLValueRef, Inner: &inner}
			}
		default:
			return ret
		}
		decl = declaratorChild(decl)
	}
	return ret
}

// extractParams parses the parameter list of a function_declarator.
func (w *walker) extractParams(fd *ts.Node) ([]RawParam, bool) {
	list := fd.ChildByFieldName("parameters")
	if list == nil {
		return nil, false
	}

	var params []RawParam
	variadic := false

	for i := uint(0); i < list.ChildCount(); i++ {
		child := list.Child(i)
		switch child.Kind() {
		case "parameter_declaration":
			params = append(params, w.extractParam(child, false))
		case "optional_parameter_declaration":
			params = append(params, w.extractParam(child, true))
		case "...", "variadic_parameter_declaration":
			variadic = true
		}
	}

	// `f(void)` means no parameters.
	if len(params) == 1 && params[0].Type.IsVoid() {
		params = nil
	}

	return params, variadic
}

func (w *walker) extractParam(node *ts.Node, hasDefault bool) RawParam {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return RawParam{Type: RawType{Unparsed: "parameter without a type specifier"}, HasDefault: hasDefault}
	}

	base := w.parseTypeSpecifier(typeNode)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "type_qualifier" && child.Utf8Text(w.src) == "const" {
			base.Const = true
		}
	}

	ty, name := w.applyDeclarator(base, node.ChildByFieldName("declarator"))
	return RawParam{Name: name, Type: ty, HasDefault: hasDefault}
}

// applyDeclarator wraps base with indirection described by a
// (possibly abstract) declarator, returning the final type and the
// parameter name if one was present.
func (w *walker) applyDeclarator(base RawType, decl *ts.Node) (RawType, string) {
	if decl == nil {
		return base, ""
	}
	switch decl.Kind() {
	case "identifier", "field_identifier", "type_identifier":
		return base, decl.Utf8Text(w.src)

	case "pointer_declarator", "abstract_pointer_declarator":
		return w.applyDeclarator(PointerTo(base), decl.ChildByFieldName("declarator"))

	case "reference_declarator", "abstract_reference_declarator":
		shape := ShapeLValueRef
		if strings.HasPrefix(decl.Utf8Text(w.src), "&&") {
			shape = ShapeRValueRef
		}
		inner := base
		return w.applyDeclarator(RawType{Shape: shape, Inner: &inner}, declaratorChild(decl))

	case "function_declarator":
		return RawType{Unparsed: "function pointer parameters are not supported"}, ""

	case "array_declarator":
		return RawType{Unparsed: "array parameters are not supported"}, ""

	default:
		return RawType{Unparsed: "unrecognized declarator form " + decl.Kind()}, ""
	}
}

// declaratorChild returns the nested declarator of a reference
// declarator, which the grammar exposes as a plain child rather than a
// field.
func declaratorChild(decl *ts.Node) *ts.Node {
	if d := decl.ChildByFieldName("declarator"); d != nil {
		return d
	}
	for i := uint(0); i < decl.NamedChildCount(); i++ {
		child := decl.NamedChild(i)
		switch child.Kind() {
		case "identifier", "field_identifier", "pointer_declarator",
			"abstract_pointer_declarator", "function_declarator", "array_declarator":
			return child
		}
	}
	return nil
}

// parseTypeSpecifier converts a type specifier node into a RawType.
func (w *walker) parseTypeSpecifier(node *ts.Node) RawType {
	switch node.Kind() {
	case "primitive_type", "type_identifier":
		return Named(node.Utf8Text(w.src))

	case "sized_type_specifier":
		// "unsigned long long" and friends; normalize whitespace.
		return Named(strings.Join(strings.Fields(node.Utf8Text(w.src)), " "))

	case "qualified_identifier":
		return Named(strings.ReplaceAll(node.Utf8Text(w.src), " ", ""))

	case "template_type":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return RawType{Unparsed: "template instance without a name"}
		}
		t := Named(nameNode.Utf8Text(w.src))
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := uint(0); i < args.NamedChildCount(); i++ {
				arg := args.NamedChild(i)
				if arg.Kind() != "type_descriptor" {
					return RawType{Unparsed: "template parameterized over a non-type argument"}
				}
				t.TemplateArgs = append(t.TemplateArgs, w.parseTypeDescriptor(arg))
			}
		}
		return t

	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		// Elaborated type specifier: `struct Goat x`.
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return Named(nameNode.Utf8Text(w.src))
		}
		return RawType{Unparsed: "anonymous aggregate type"}

	case "placeholder_type_specifier", "auto":
		return RawType{Unparsed: "deduced (auto) types are not supported"}

	case "dependent_type":
		return RawType{Unparsed: "dependent types are not supported"}

	default:
		return RawType{Unparsed: "unrecognized type form " + node.Kind()}
	}
}

// parseTypeDescriptor handles the type_descriptor nodes used in
// template argument lists: a type specifier plus optional abstract
// declarators.
func (w *walker) parseTypeDescriptor(node *ts.Node) RawType {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return RawType{Unparsed: "empty template argument"}
	}
	base := w.parseTypeSpecifier(typeNode)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "type_qualifier" && child.Utf8Text(w.src) == "const" {
			base.Const = true
		}
	}
	ty, _ := w.applyDeclarator(base, node.ChildByFieldName("declarator"))
	return ty
}

// isPureVirtual detects a trailing "= 0" on a member declaration.
func isPureVirtual(node *ts.Node, src []byte) bool {
	text := strings.TrimSpace(node.Utf8Text(src))
	text = strings.TrimSuffix(text, ";")
	text = strings.TrimSpace(text)
	return strings.HasSuffix(text, "= 0") || strings.HasSuffix(text, "=0")
}

func lastComponent(qualified string) string {
	if idx := strings.LastIndex(qualified, "::"); idx >= 0 {
		return qualified[idx+2:]
	}
	return qualified
}
