package evm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	fieldTypeRegex  = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\[([1-9][0-9]*)?\])*$`)
)

// IsPrimitiveType reports whether typ is an EIP-712 atomic or dynamic
// primitive (address, bool, string, bytes, bytesN, uintN, intN)
func IsPrimitiveType(typ string) bool {
	switch typ {
	case "address", "bool", "string", "bytes":
		return true
	}
	if n, ok := sizeSuffix(typ, "bytes"); ok {
		return n >= 1 && n <= 32
	}
	if n, ok := sizeSuffix(typ, "uint"); ok {
		return n >= 8 && n <= 256 && n%8 == 0
	}
	if n, ok := sizeSuffix(typ, "int"); ok {
		return n >= 8 && n <= 256 && n%8 == 0
	}
	return false
}

// sizeSuffix parses the decimal size following prefix, e.g. ("uint256", "uint") -> 256
func sizeSuffix(typ, prefix string) (int, bool) {
	if !strings.HasPrefix(typ, prefix) {
		return 0, false
	}
	rest := typ[len(prefix):]
	if rest == "" || rest[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// baseType strips every array suffix: "Asset[][2]" -> "Asset"
func baseType(typ string) string {
	if i := strings.IndexByte(typ, '['); i >= 0 {
		return typ[:i]
	}
	return typ
}

// isArrayType reports whether typ carries at least one array suffix
func isArrayType(typ string) bool {
	return strings.HasSuffix(typ, "]")
}

// splitArrayType peels the outermost array dimension.
// "uint256[][2]" -> ("uint256[]", 2); "Asset[]" -> ("Asset", -1).
func splitArrayType(typ string) (string, int, error) {
	open := strings.LastIndexByte(typ, '[')
	if open < 0 || !strings.HasSuffix(typ, "]") {
		return "", 0, fmt.Errorf("%s is not an array type", typ)
	}
	size := typ[open+1 : len(typ)-1]
	if size == "" {
		return typ[:open], -1, nil
	}
	n, err := strconv.Atoi(size)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("invalid array length in %s", typ)
	}
	return typ[:open], n, nil
}
