package codegen

import (
	"fmt"
	"strings"

	"github.com/bindweld/bindweld/pkg/classify"
	"github.com/bindweld/bindweld/pkg/extract"
	"github.com/bindweld/bindweld/pkg/model"
)

// functionFragment generates the wrapper, extern declaration and shim
// definition for one function entity. Any unsupported construct
// anywhere in the signature degrades the whole function to a stub.
func (g *Generator) functionFragment(e *model.Entity) *fragment {
	fn := e.Fun
	sig, ok := g.api.Funcs[e.ID]
	if !ok {
		panic(fmt.Sprintf("function %s has no resolved signature: internal invariant violated", e.Name))
	}

	qualified := e.Name.String()
	if fn.Variadic {
		return g.stubFragment(qualified, e.Loc, "variadic functions are not supported")
	}
	for _, p := range fn.Params {
		if p.HasDefault {
			return g.stubFragment(qualified, e.Loc, "default parameter values are not supported")
		}
	}
	if fn.Kind == extract.KindOperator {
		return g.stubFragment(qualified, e.Loc, "operator overloads are not generated")
	}
	if fn.Kind == extract.KindConstructor {
		return g.ctorFragment(e, sig)
	}

	w, err := g.planWrapper(e, sig)
	if err != nil {
		return g.stubFragment(qualified, e.Loc, err.Error())
	}
	return g.emitWrapper(e, w)
}

// wrapperPlan is a fully lowered signature ready for emission.
type wrapperPlan struct {
	// recv is nil for free functions.
	recv *receiverPlan

	params []paramPlan
	ret    *lowered

	gated bool
}

type receiverPlan struct {
	// goRecv is the Go receiver clause, e.g. "r FooRef" or "p *Point".
	goRecv string
	// cppType of the receiver for the shim's self cast.
	cppType string
	// constSelf marks const member functions.
	constSelf bool
	// trivial receivers pass the mirror struct's address.
	trivial bool
}

type paramPlan struct {
	name string
	l    lowered
}

func (g *Generator) planWrapper(e *model.Entity, sig *model.FunSig) (*wrapperPlan, error) {
	fn := e.Fun
	w := &wrapperPlan{}
	refInputs := 0

	if fn.MethodOf != "" {
		if sig.Receiver == model.NoEntity {
			return nil, stubf("the receiver type %s was not analyzed", fn.MethodOf)
		}
		recv := g.api.Entity(sig.Receiver)
		flat := g.names.TypeName(recv.ID)
		r := g.classes.Of(recv.ID)
		rp := &receiverPlan{constSelf: fn.Const, cppType: cppSpelling(recv.Name)}
		switch r.Verdict {
		case classify.VerdictTrivial:
			rp.goRecv = "p *" + flat
			rp.trivial = true
		default:
			if fn.Const {
				rp.goRecv = "r " + flat + "Ref"
			} else {
				rp.goRecv = "r " + flat + "RefMut"
			}
			refInputs++
		}
		w.recv = rp
	}

	used := map[string]bool{"r": true, "p": true, "out": true, "ret": true}
	for i, tr := range sig.Params {
		l, err := g.lw.lowerParam(tr)
		if err != nil {
			return nil, err
		}
		if l.mode == passBorrow {
			refInputs++
		}
		if l.gated() {
			w.gated = true
		}
		name := paramIdent(sig.ParamNames, i, used)
		w.params = append(w.params, paramPlan{name: name, l: l})
	}

	if sig.Ret != nil {
		l, err := g.lw.lowerReturn(*sig.Ret, refInputs)
		if err != nil {
			return nil, err
		}
		if l.gated() {
			w.gated = true
		}
		w.ret = &l
	}

	if g.pol.Gated(w.gated) {
		w.gated = true
	}
	return w, nil
}

// emitWrapper renders the three sides of one planned function.
func (g *Generator) emitWrapper(e *model.Entity, w *wrapperPlan) *fragment {
	f := &fragment{}
	goName := g.names.FunctionName(e.ID)
	sym := g.names.ShimSymbol(e.ID)
	fn := e.Fun

	// Go side.
	var goParams []string
	if w.gated {
		goParams = append(goParams, "_ Unsafe")
	}
	for _, p := range w.params {
		goParams = append(goParams, p.name+" "+p.l.goType)
	}

	var callArgs []string
	if w.recv != nil {
		if w.recv.trivial {
			callArgs = append(callArgs, "unsafe.Pointer(p)")
		} else {
			callArgs = append(callArgs, "r.ptr")
		}
	}
	for _, p := range w.params {
		callArgs = append(callArgs, goArg(p))
	}

	recvClause := ""
	if w.recv != nil {
		recvClause = "(" + w.recv.goRecv + ") "
	}

	f.goDecl = append(f.goDecl, fmt.Sprintf("// %s calls the C++ function %s.", goName, e.Name))
	switch {
	case w.ret == nil:
		f.goDecl = append(f.goDecl,
			fmt.Sprintf("func %s%s(%s) {", recvClause, goName, strings.Join(goParams, ", ")),
			fmt.Sprintf("\tC.%s(%s)", sym, strings.Join(callArgs, ", ")),
			"}", "")
	case w.ret.byCopyStruct:
		f.goDecl = append(f.goDecl,
			fmt.Sprintf("func %s%s(%s) %s {", recvClause, goName, strings.Join(goParams, ", "), w.ret.goType),
			fmt.Sprintf("\tvar out %s", w.ret.goType),
			fmt.Sprintf("\tC.%s(%s)", sym, strings.Join(append(callArgs, structOutArg(*w.ret)), ", ")),
			"\treturn out",
			"}", "")
	default:
		f.goDecl = append(f.goDecl,
			fmt.Sprintf("func %s%s(%s) %s {", recvClause, goName, strings.Join(goParams, ", "), w.ret.goType),
			fmt.Sprintf("\treturn %s", goReturn(*w.ret, fmt.Sprintf("C.%s(%s)", sym, strings.Join(callArgs, ", ")))),
			"}", "")
	}

	// Shim declaration and definition.
	cRet, cParams := g.cSignature(w)
	decl := fmt.Sprintf("%s %s(%s);", cRet, sym, strings.Join(cParams, ", "))
	f.hDecl = append(f.hDecl, decl)

	def := fmt.Sprintf("%s %s(%s) {", cRet, sym, strings.Join(cParams, ", "))
	f.ccDef = append(f.ccDef, def)
	f.ccDef = append(f.ccDef, g.shimBody(fn, w)...)
	f.ccDef = append(f.ccDef, "}", "")

	f.symbolsUsed = append(f.symbolsUsed, sym)
	f.symbolsDefined = append(f.symbolsDefined, sym)
	return f
}

// ctorFragment generates the owned-box and in-place entry point pair
// for one user-declared constructor overload.
func (g *Generator) ctorFragment(e *model.Entity, sig *model.FunSig) *fragment {
	if sig.Receiver == model.NoEntity {
		return g.stubFragment(e.Name.String(), e.Loc, fmt.Sprintf("the receiver type %s was not analyzed", e.Fun.MethodOf))
	}
	recv := g.api.Entity(sig.Receiver)
	r := g.classes.Of(recv.ID)
	switch r.Verdict {
	case classify.VerdictTrivial:
		// Trivial types are constructed directly in Go; no wrapper.
		return nil
	case classify.VerdictAbstract:
		return g.stubFragment(e.Name.String(), e.Loc, fmt.Sprintf("%s is abstract; constructors are not generated", recv.Name))
	case classify.VerdictForwardOnly:
		return g.stubFragment(e.Name.String(), e.Loc, fmt.Sprintf("%s is only forward declared; constructors are not generated", recv.Name))
	}

	w := &wrapperPlan{}
	used := map[string]bool{"dst": true, "out": true}
	for i, tr := range sig.Params {
		l, err := g.lw.lowerParam(tr)
		if err != nil {
			return g.stubFragment(e.Name.String(), e.Loc, err.Error())
		}
		if l.gated() {
			w.gated = true
		}
		w.params = append(w.params, paramPlan{name: paramIdent(sig.ParamNames, i, used), l: l})
	}
	if g.pol.Gated(w.gated) {
		w.gated = true
	}

	f := &fragment{}
	flat := g.names.TypeName(recv.ID)
	cpp := cppSpelling(recv.Name)
	goName := g.names.FunctionName(e.ID)
	placeName := "Place" + strings.TrimPrefix(goName, "New")
	sym := g.names.ShimSymbol(e.ID)
	placeSym := sym + "_place"

	goParams := []string{}
	if w.gated {
		goParams = append(goParams, "_ Unsafe")
	}
	var callArgs []string
	for _, p := range w.params {
		goParams = append(goParams, p.name+" "+p.l.goType)
		callArgs = append(callArgs, goArg(p))
	}

	f.goDecl = append(f.goDecl,
		fmt.Sprintf("// %s constructs a %s on the native heap.", goName, cpp),
		fmt.Sprintf("func %s(%s) *Owned%s {", goName, strings.Join(goParams, ", "), flat),
		fmt.Sprintf("\treturn &Owned%s{ptr: C.%s(%s)}", flat, sym, strings.Join(callArgs, ", ")),
		"}",
		"",
		fmt.Sprintf("// %s constructs a %s into caller-provided storage of at", placeName, cpp),
		fmt.Sprintf("// least Sizeof%s() bytes.", flat),
		fmt.Sprintf("func %s(%s) {", placeName, strings.Join(append([]string{"_ Unsafe", "dst unsafe.Pointer"}, goParams[boolToInt(w.gated):]...), ", ")),
		fmt.Sprintf("\tC.%s(%s)", placeSym, strings.Join(append([]string{"dst"}, callArgs...), ", ")),
		"}", "")

	_, cParams := g.cSignature(w)
	f.hDecl = append(f.hDecl,
		fmt.Sprintf("void* %s(%s);", sym, strings.Join(cParams, ", ")),
		fmt.Sprintf("void %s(%s);", placeSym, strings.Join(append([]string{"void* dst"}, cParams...), ", ")))

	args := g.cppArgs(w)
	f.ccDef = append(f.ccDef,
		fmt.Sprintf("void* %s(%s) {", sym, strings.Join(cParams, ", ")),
		fmt.Sprintf("\treturn new %s(%s);", cpp, strings.Join(args, ", ")))
	f.ccDef = append(f.ccDef, g.ownedParamCleanup(w)...)
	f.ccDef = append(f.ccDef, "}",
		fmt.Sprintf("void %s(%s) {", placeSym, strings.Join(append([]string{"void* dst"}, cParams...), ", ")),
		fmt.Sprintf("\tnew (dst) %s(%s);", cpp, strings.Join(args, ", ")))
	f.ccDef = append(f.ccDef, g.ownedParamCleanup(w)...)
	f.ccDef = append(f.ccDef, "}", "")

	f.symbolsUsed = append(f.symbolsUsed, sym, placeSym)
	f.symbolsDefined = append(f.symbolsDefined, sym, placeSym)
	return f
}

// cSignature spells the shim's extern "C" signature.
func (g *Generator) cSignature(w *wrapperPlan) (ret string, params []string) {
	if w.recv != nil {
		params = append(params, "void* self")
	}
	for i, p := range w.params {
		params = append(params, fmt.Sprintf("%s c%d", p.l.cType, i))
	}

	ret = "void"
	if w.ret != nil {
		switch {
		case w.ret.byCopyStruct:
			params = append(params, strings.TrimSuffix(w.ret.cType, "*")+"* out")
		default:
			ret = w.ret.cType
		}
	}
	if len(params) == 0 {
		params = append(params, "void")
	}
	return ret, params
}

// shimBody renders the C++ statements adapting the extern "C" call to
// the real calling convention.
func (g *Generator) shimBody(fn *extract.RawFunction, w *wrapperPlan) []string {
	callee := g.callee(fn, w)
	args := g.cppArgs(w)
	call := fmt.Sprintf("%s(%s)", callee, strings.Join(args, ", "))

	var body []string
	switch {
	case w.ret == nil:
		body = append(body, "\t"+call+";")
	case w.ret.byCopyStruct:
		body = append(body, fmt.Sprintf("\t*reinterpret_cast<%s*>(out) = %s;", w.ret.cppType, call))
	case w.ret.mode == passOwned:
		body = append(body, fmt.Sprintf("\treturn new %s(%s);", w.ret.cppType, call))
	case w.ret.mode == passBorrow:
		body = append(body, fmt.Sprintf("\treturn const_cast<void*>(static_cast<const void*>(&%s));", call))
	case w.ret.mode == passRaw:
		body = append(body, fmt.Sprintf("\treturn const_cast<void*>(static_cast<const void*>(%s));", call))
	case w.ret.isEnum:
		body = append(body, fmt.Sprintf("\treturn static_cast<%s>(%s);", w.ret.cType, call))
	default:
		body = append(body, "\treturn "+call+";")
	}
	return append(body, g.ownedParamCleanup(w)...)
}

// ownedParamCleanup deletes the boxes of consumed by-value arguments
// once the call has moved out of them.
func (g *Generator) ownedParamCleanup(w *wrapperPlan) []string {
	var out []string
	for i, p := range w.params {
		if p.l.mode == passOwned {
			out = append(out, fmt.Sprintf("\tdelete static_cast<%s*>(c%d);", p.l.cppType, i))
		}
	}
	return out
}

func (g *Generator) callee(fn *extract.RawFunction, w *wrapperPlan) string {
	if w.recv != nil {
		method := fn.Name
		if i := strings.LastIndex(method, "::"); i >= 0 {
			method = method[i+2:]
		}
		if fn.Static {
			return w.recv.cppType + "::" + method
		}
		constQ := ""
		if w.recv.constSelf {
			constQ = "const "
		}
		return fmt.Sprintf("static_cast<%s%s*>(self)->%s", constQ, w.recv.cppType, method)
	}
	return "::" + fn.Name
}

// cppArgs renders each extern "C" parameter back into the C++
// argument the real function expects.
func (g *Generator) cppArgs(w *wrapperPlan) []string {
	var args []string
	for i, p := range w.params {
		c := fmt.Sprintf("c%d", i)
		switch {
		case p.l.byCopyStruct:
			args = append(args, fmt.Sprintf("*reinterpret_cast<const %s*>(%s)", p.l.cppType, c))
		case p.l.mode == passOwned:
			args = append(args, fmt.Sprintf("std::move(*static_cast<%s*>(%s))", p.l.cppType, c))
		case p.l.mode == passBorrow:
			constQ := "const "
			if p.l.mutable {
				constQ = ""
			}
			args = append(args, fmt.Sprintf("*static_cast<%s%s*>(%s)", constQ, p.l.cppType, c))
		case p.l.mode == passRaw:
			constQ := ""
			if !p.l.mutable {
				constQ = "const "
			}
			args = append(args, fmt.Sprintf("static_cast<%s%s*>(%s)", constQ, p.l.cppType, c))
		case p.l.isEnum:
			args = append(args, fmt.Sprintf("static_cast<%s>(%s)", p.l.cppType, c))
		default:
			args = append(args, c)
		}
	}
	return args
}

// goArg converts one Go wrapper argument into its cgo call form.
func goArg(p paramPlan) string {
	switch {
	case p.l.byCopyStruct:
		return fmt.Sprintf("(*C.%s)(unsafe.Pointer(&%s))", strings.TrimSuffix(p.l.cType, "*"), p.name)
	case p.l.mode == passOwned:
		return p.name + ".release()"
	case p.l.mode == passBorrow:
		return p.name + ".ptr"
	case p.l.mode == passRaw:
		return p.name
	case p.l.cgoType == "unsafe.Pointer":
		return p.name
	default:
		return fmt.Sprintf("%s(%s)", p.l.cgoType, p.name)
	}
}

// structOutArg spells the out-parameter a by-copy struct result comes
// back through, mirroring goArg's byCopyStruct case.
func structOutArg(l lowered) string {
	return fmt.Sprintf("(*C.%s)(unsafe.Pointer(&out))", strings.TrimSuffix(l.cType, "*"))
}

// goReturn converts the cgo result expression to the wrapper's
// declared Go type.
func goReturn(l lowered, call string) string {
	switch l.mode {
	case passOwned:
		flatPtr := l.goType // "*OwnedFoo"
		return fmt.Sprintf("&%s{ptr: %s}", strings.TrimPrefix(flatPtr, "*"), call)
	case passBorrow:
		return fmt.Sprintf("%s{ptr: %s}", l.goType, call)
	case passRaw:
		return call
	default:
		if l.goType == "" {
			return call
		}
		return fmt.Sprintf("%s(%s)", l.goType, call)
	}
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// paramIdent picks a collision-free Go parameter name, preferring the
// name from the source declaration.
func paramIdent(names []string, i int, used map[string]bool) string {
	name := ""
	if i < len(names) {
		name = names[i]
	}
	if name == "" || goKeywords[name] || used[name] {
		name = fmt.Sprintf("a%d", i)
	}
	used[name] = true
	return name
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
