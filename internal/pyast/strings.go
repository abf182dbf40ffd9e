package pyast

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// stringConstant decodes a single Python string literal, including its
// prefix and quotes. Formatted strings have no constant value and come back
// as Opaque.
func stringConstant(pos Node, text string) Expr {
	i := strings.IndexAny(text, `'"`)
	if i < 0 {
		return &Opaque{Node: pos, Kind: "string", Text: text}
	}
	prefix := strings.ToLower(text[:i])
	if strings.ContainsRune(prefix, 'f') {
		return &Opaque{Node: pos, Kind: "fstring", Text: text}
	}

	body := text[i:]
	quote := body[:1]
	if len(body) >= 6 && (strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`)) {
		quote = body[:3]
	}
	if len(body) >= 2*len(quote) && strings.HasSuffix(body, quote) {
		body = body[len(quote) : len(body)-len(quote)]
	} else {
		body = strings.TrimPrefix(body, quote)
	}

	bytesLit := strings.ContainsRune(prefix, 'b')
	if !strings.ContainsRune(prefix, 'r') {
		body = unescape(body, bytesLit)
	}

	kind := ConstStr
	if bytesLit {
		kind = ConstBytes
	}
	return &Constant{Node: pos, Kind: kind, Value: body}
}

// unescape decodes Python backslash escapes. Unknown escapes are kept
// verbatim, as Python does. In byte literals \x and octal escapes produce raw
// bytes and \u, \U and \N are not escapes.
func unescape(s string, bytesLit bool) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}

		i++
		switch e := s[i]; e {
		case '\n':
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')

		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			writeCode(&sb, rune(v), bytesLit)
			i = j - 1

		case 'x':
			if v, ok := hexDigits(s, i+1, 2); ok {
				writeCode(&sb, v, bytesLit)
				i += 2
			} else {
				sb.WriteString(`\x`)
			}

		case 'u', 'U':
			n := 4
			if e == 'U' {
				n = 8
			}
			if v, ok := hexDigits(s, i+1, n); ok && !bytesLit && utf8.ValidRune(v) {
				sb.WriteRune(v)
				i += n
			} else {
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}

		default:
			// Includes \N{NAME}: named characters are left as written.
			sb.WriteByte('\\')
			sb.WriteByte(e)
		}
	}
	return sb.String()
}

func hexDigits(s string, start, n int) (rune, bool) {
	if start+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+n], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

func writeCode(sb *strings.Builder, v rune, raw bool) {
	if raw && v <= 0xff {
		sb.WriteByte(byte(v))
		return
	}
	sb.WriteRune(v)
}
