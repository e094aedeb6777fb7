package detector

import (
	"strconv"
	"strings"

	"github.com/0x6d61/sqltarget/internal/engine"
)

// unsafeDecodeChars stay percent-encoded unless a full decode is requested,
// so that decoding never introduces new delimiters or marks.
const unsafeDecodeChars = "%&=;+" + engine.MarkChar

// URLDecode decodes %XX escapes in value. With convall unset, escapes that
// decode to a non-printable character or to one of "%&=;+*" are kept as
// they are. With plusSpace set, "+" becomes a space.
func URLDecode(value string, convall, plusSpace bool) string {
	if !strings.Contains(value, "%") && !(plusSpace && strings.Contains(value, "+")) {
		return value
	}

	b := &strings.Builder{}
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '+' && plusSpace {
			b.WriteByte(' ')
			continue
		}
		if c != '%' || i+2 >= len(value) {
			b.WriteByte(c)
			continue
		}
		n, err := strconv.ParseUint(value[i+1:i+3], 16, 8)
		if err != nil {
			b.WriteByte(c)
			continue
		}
		ch := byte(n)
		if !convall && (ch < 0x20 || ch > 0x7e || strings.IndexByte(unsafeDecodeChars, ch) >= 0) {
			b.WriteString(value[i : i+3])
			i += 2
			continue
		}
		b.WriteByte(ch)
		i += 2
	}
	return b.String()
}
