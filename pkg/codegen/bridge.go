package codegen

import (
	"bytes"
	"fmt"
	"strings"
)

const generatedBy = "// Code generated by bindweld. DO NOT EDIT."

func writeBridgePrelude(buf *bytes.Buffer, mod string, includes []string) {
	fmt.Fprintf(buf, "%s\n\n", generatedBy)
	fmt.Fprintf(buf, "package %s\n\n", mod)
	buf.WriteString("/*\n")
	buf.WriteString("#include <stddef.h>\n")
	fmt.Fprintf(buf, "#include %q\n", mod+"_shim.h")
	buf.WriteString("*/\n")
	buf.WriteString("import \"C\"\n\n")
	buf.WriteString("import \"unsafe\"\n\n")
	buf.WriteString("var _ = unsafe.Pointer(nil)\n\n")
	buf.WriteString("// Unsafe is the caller's acknowledgement that a call crosses into\n")
	buf.WriteString("// native code whose invariants this layer cannot check. Construct\n")
	buf.WriteString("// one wherever you accept that responsibility.\n")
	buf.WriteString("type Unsafe struct{}\n\n")
}

func writeHeaderPrelude(buf *bytes.Buffer, mod string) {
	guard := strings.ToUpper(mod) + "_SHIM_H"
	fmt.Fprintf(buf, "%s\n\n", generatedBy)
	fmt.Fprintf(buf, "#ifndef %s\n#define %s\n\n", guard, guard)
	buf.WriteString("#include <stdint.h>\n")
	buf.WriteString("#include <stddef.h>\n")
	buf.WriteString("#include <stdbool.h>\n\n")
	buf.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")
}

func writeHeaderEpilogue(buf *bytes.Buffer) {
	buf.WriteString("\n#ifdef __cplusplus\n} /* extern \"C\" */\n#endif\n\n#endif\n")
}

func writeSourcePrelude(buf *bytes.Buffer, mod string, includes []string) {
	fmt.Fprintf(buf, "%s\n\n", generatedBy)
	for _, inc := range includes {
		fmt.Fprintf(buf, "#include %q\n", inc)
	}
	fmt.Fprintf(buf, "#include %q\n", mod+"_shim.h")
	buf.WriteString("#include <new>\n")
	buf.WriteString("#include <utility>\n")
	buf.WriteString("#include <type_traits>\n\n")
}
