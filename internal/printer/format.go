package printer

import (
	"fmt"
	"strconv"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/pcode"
)

// FormatInt renders val under one of the convert/force directives a
// Symbol carries (spec section 6's display-format equates), built
// from strconv conversions with a C-style prefix rather than Go's
// default verbs.
func FormatInt(val uint64, signed bool, size int, format datatype.DisplayFormat) string {
	switch format {
	case datatype.FormatHex:
		return "0x" + strconv.FormatUint(val, 16)
	case datatype.FormatOct:
		return "0" + strconv.FormatUint(val, 8)
	case datatype.FormatBin:
		return "0b" + strconv.FormatUint(val, 2)
	case datatype.FormatChar:
		if val >= 0x20 && val < 0x7f {
			return fmt.Sprintf("'%c'", rune(val))
		}
		return "0x" + strconv.FormatUint(val, 16)
	default:
		if signed {
			return strconv.FormatInt(signExtend(val, size), 10)
		}
		return strconv.FormatUint(val, 10)
	}
}

// signExtend reinterprets the low size bytes of val as a signed
// integer (two's-complement sign extension to 64 bits).
func signExtend(val uint64, size int) int64 {
	if size <= 0 || size >= 8 {
		return int64(val)
	}
	bits := uint(size * 8)
	shift := 64 - bits
	return int64(val<<shift) >> shift
}

// TypeName renders a Datatype's declarator the way a C printer would,
// falling back to Datatype.String when no symbol name applies.
func TypeName(t *datatype.Datatype) string {
	if t == nil {
		return "undefined"
	}
	return t.String()
}

// VarnodeText renders one Varnode's source-level text: a constant's
// literal value under its known display format, or a storage
// reference built from its address space and offset when no symbol
// name is known.
func VarnodeText(vn *pcode.Varnode, sym *datatype.Symbol) string {
	if vn == nil {
		return "?"
	}
	if sym != nil && sym.Name != "" {
		return sym.Name
	}
	if vn.IsConstant() {
		format := datatype.FormatDefault
		if sym != nil {
			format = sym.Format
		}
		return FormatInt(vn.Addr.Off, false, vn.Size, format)
	}
	return addrText(vn.Addr, vn.Size)
}

func addrText(addr address.Address, size int) string {
	name := "v"
	if addr.Space != nil {
		name = addr.Space.Name
	}
	return fmt.Sprintf("%s_%s:%d", name, strconv.FormatUint(addr.Off, 16), size)
}

// ConvertedFieldName resolves sym's forced union facet, if any, to
// the textual field-access suffix printed after a base expression
// (spec section 4.6, the convert-symbol case of datatype.Symbol).
func ConvertedFieldName(parent *datatype.Datatype, sym *datatype.Symbol) (string, bool) {
	if sym == nil || sym.ConvertFacet == "" || parent == nil {
		return "", false
	}
	u := parent.Underlying()
	if u == nil {
		return "", false
	}
	for _, f := range u.Fields {
		if f.Name == sym.ConvertFacet {
			return f.Name, true
		}
	}
	return "", false
}
