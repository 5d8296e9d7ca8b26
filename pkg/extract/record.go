package extract

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// extractRecord handles class/struct/union specifiers, including
// forward declarations and nested types.
func (w *walker) extractRecord(node *ts.Node, ns []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
			Reason:    "anonymous struct/class/union",
			DeclOrder: w.nextOrder(),
			Loc:       w.loc(node),
		})
		return
	}
	simpleName := nameNode.Utf8Text(w.src)
	qualified := qualify(ns, simpleName)

	rec := RawRecord{
		Name:      qualified,
		Kind:      recordKindOf(node),
		DeclOrder: w.nextOrder(),
		Loc:       w.loc(node),
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		rec.ForwardOnly = true
		w.out.Records = append(w.out.Records, rec)
		return
	}

	if bases := findChildOfKind(node, "base_class_clause"); bases != nil {
		for i := uint(0); i < bases.NamedChildCount(); i++ {
			base := bases.NamedChild(i)
			switch base.Kind() {
			case "type_identifier", "qualified_identifier", "template_type":
				rec.Bases = append(rec.Bases, strings.ReplaceAll(base.Utf8Text(w.src), " ", ""))
			}
		}
	}

	// Default access: public for struct/union, private for class.
	access := AccessPublic
	if rec.Kind == RecordClass {
		access = AccessPrivate
	}

	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		switch child.Kind() {
		case "access_specifier":
			access = parseAccess(child.Utf8Text(w.src))

		case "field_declaration":
			if fd := findFunctionDeclarator(child); fd != nil {
				w.recordMethod(&rec, child, fd, qualified, simpleName)
				continue
			}
			// A nested type definition without a declarator arrives as
			// a field_declaration whose type node carries the body.
			if child.ChildByFieldName("declarator") == nil {
				if tn := child.ChildByFieldName("type"); tn != nil && tn.ChildByFieldName("body") != nil {
					switch tn.Kind() {
					case "class_specifier", "struct_specifier", "union_specifier":
						w.extractRecord(tn, append(append([]string{}, ns...), simpleName))
						continue
					case "enum_specifier":
						w.extractEnum(tn, append(append([]string{}, ns...), simpleName))
						continue
					}
				}
			}
			w.recordField(&rec, child, access)

		case "function_definition", "declaration":
			if fd := findFunctionDeclarator(child); fd != nil {
				w.recordMethod(&rec, child, fd, qualified, simpleName)
			}

		case "class_specifier", "struct_specifier", "union_specifier":
			// Nested type: extracted as its own record, qualified by
			// the enclosing type's name.
			w.extractRecord(child, append(append([]string{}, ns...), simpleName))

		case "enum_specifier":
			w.extractEnum(child, append(append([]string{}, ns...), simpleName))

		case "alias_declaration":
			w.extractAlias(child, append(append([]string{}, ns...), simpleName))

		case "template_declaration":
			w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
				Name:      qualified + "::" + w.templateName(child),
				Reason:    "templated members are not supported",
				DeclOrder: w.nextOrder(),
				Loc:       w.loc(child),
			})

		case "friend_declaration", "comment", "using_declaration",
			"static_assert_declaration":
			// Irrelevant to the binding surface.
		}
	}

	w.out.Records = append(w.out.Records, rec)
}

func (w *walker) recordField(rec *RawRecord, node *ts.Node, access Access) {
	decl := node.ChildByFieldName("declarator")
	if decl == nil {
		return
	}

	// Static data members are not part of object layout and are not
	// bound; bitfields make the layout compiler-dependent.
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).Kind() == "storage_class_specifier" {
			return
		}
		if node.Child(i).Kind() == "bitfield_clause" {
			rec.Fields = append(rec.Fields, RawField{
				Name:   identifierOf(decl, w.src),
				Type:   RawType{Unparsed: "bitfield members are not supported"},
				Access: access,
				Loc:    w.loc(node),
			})
			return
		}
	}

	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	base := w.parseTypeSpecifier(typeNode)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "type_qualifier" && child.Utf8Text(w.src) == "const" {
			base.Const = true
		}
	}

	ty, name := w.applyDeclarator(base, decl)
	if name == "" {
		name = identifierOf(decl, w.src)
	}
	rec.Fields = append(rec.Fields, RawField{
		Name:   name,
		Type:   ty,
		Access: access,
		Loc:    w.loc(node),
	})
}

// recordMethod extracts a member function and updates the record's
// special member inventory and virtual-ness as a side effect.
func (w *walker) recordMethod(rec *RawRecord, node, fd *ts.Node, qualified, simpleName string) {
	fn, ok := w.extractFunction(node, fd, nil, qualified)
	if !ok {
		return
	}
	if fn.Virtual {
		rec.HasVirtual = true
	}
	if fn.PureVirtual {
		rec.Abstract = true
	}

	presence := PresenceDeclared
	for i := uint(0); i < node.NamedChildCount(); i++ {
		switch node.NamedChild(i).Kind() {
		case "default_method_clause":
			presence = PresenceDefaulted
		case "delete_method_clause":
			presence = PresenceDeleted
		}
	}

	switch fn.Kind {
	case KindConstructor:
		switch classifyCtor(fn, simpleName) {
		case ctorDefault:
			rec.Specials.DefaultCtor = presence
		case ctorCopy:
			rec.Specials.CopyCtor = presence
		case ctorMove:
			rec.Specials.MoveCtor = presence
		default:
			if presence != PresenceDeleted {
				rec.Specials.OtherCtor = true
			}
		}
	case KindDestructor:
		rec.Specials.Destructor = presence
	case KindOperator:
		if lastComponent(fn.Name) == "operator=" && len(fn.Params) == 1 {
			switch fn.Params[0].Type.Shape {
			case ShapeLValueRef:
				rec.Specials.CopyAssign = presence
			case ShapeRValueRef:
				rec.Specials.MoveAssign = presence
			}
		}
	}

	// Deleted members are inventory-only; they are not callable and
	// must not reach codegen.
	if presence == PresenceDeleted {
		return
	}
	w.out.Functions = append(w.out.Functions, fn)
}

type ctorClass int

const (
	ctorOther ctorClass = iota
	ctorDefault
	ctorCopy
	ctorMove
)

// classifyCtor decides whether a constructor is the default, copy, or
// move constructor based on its parameter list.
func classifyCtor(fn RawFunction, recordName string) ctorClass {
	if len(fn.Params) == 0 {
		return ctorDefault
	}
	if len(fn.Params) != 1 {
		return ctorOther
	}
	p := fn.Params[0].Type
	if p.Inner == nil || p.Inner.Shape != ShapeNamed || lastComponent(p.Inner.Name) != recordName {
		return ctorOther
	}
	switch p.Shape {
	case ShapeLValueRef:
		return ctorCopy
	case ShapeRValueRef:
		return ctorMove
	}
	return ctorOther
}

func (w *walker) extractEnum(node *ts.Node, ns []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
			Reason:    "anonymous enum",
			DeclOrder: w.nextOrder(),
			Loc:       w.loc(node),
		})
		return
	}

	en := RawEnum{
		Name:      qualify(ns, nameNode.Utf8Text(w.src)),
		Scoped:    strings.Contains(node.Utf8Text(w.src), "enum class") || strings.Contains(node.Utf8Text(w.src), "enum struct"),
		DeclOrder: w.nextOrder(),
		Loc:       w.loc(node),
	}

	if base := node.ChildByFieldName("base"); base != nil {
		en.Underlying = strings.Join(strings.Fields(base.Utf8Text(w.src)), " ")
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		// Forward-declared enum; usable only once the definition shows
		// up in some other requested header.
		w.out.Enums = append(w.out.Enums, en)
		return
	}

	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child.Kind() != "enumerator" {
			continue
		}
		e := Enumerator{}
		if name := child.ChildByFieldName("name"); name != nil {
			e.Name = name.Utf8Text(w.src)
		}
		if value := child.ChildByFieldName("value"); value != nil {
			e.Value = strings.TrimSpace(value.Utf8Text(w.src))
		}
		if e.Name != "" {
			en.Enumerators = append(en.Enumerators, e)
		}
	}

	w.out.Enums = append(w.out.Enums, en)
}

// extractAlias handles `using Name = Type;`.
func (w *walker) extractAlias(node *ts.Node, ns []string) {
	nameNode := node.ChildByFieldName("name")
	typeNode := node.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	w.out.Typedefs = append(w.out.Typedefs, RawTypedef{
		Name:      qualify(ns, nameNode.Utf8Text(w.src)),
		Target:    w.parseTypeDescriptor(typeNode),
		DeclOrder: w.nextOrder(),
		Loc:       w.loc(node),
	})
}

// extractTypedef handles `typedef Type Name;`.
func (w *walker) extractTypedef(node *ts.Node, ns []string) {
	typeNode := node.ChildByFieldName("type")
	decl := node.ChildByFieldName("declarator")
	if typeNode == nil || decl == nil {
		return
	}

	base := w.parseTypeSpecifier(typeNode)
	target, name := w.applyDeclarator(base, decl)
	if name == "" {
		name = identifierOf(decl, w.src)
	}
	if name == "" {
		return
	}
	w.out.Typedefs = append(w.out.Typedefs, RawTypedef{
		Name:      qualify(ns, name),
		Target:    target,
		DeclOrder: w.nextOrder(),
		Loc:       w.loc(node),
	})
}

func recordKindOf(node *ts.Node) RecordKind {
	switch node.Kind() {
	case "class_specifier":
		return RecordClass
	case "union_specifier":
		return RecordUnion
	default:
		return RecordStruct
	}
}

func parseAccess(text string) Access {
	switch strings.TrimSuffix(strings.TrimSpace(text), ":") {
	case "private":
		return AccessPrivate
	case "protected":
		return AccessProtected
	default:
		return AccessPublic
	}
}

func findChildOfKind(node *ts.Node, kind string) *ts.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child.Kind() == kind {
			return child
		}
	}
	return nil
}
