package nortek

import "strings"

const hexDigits = "0123456789ABCDEF"

// Sanitize returns a printable representation of raw protocol bytes.
// Control characters are escaped ("\r", "\n", "\t", "\xHH") so a trace line
// never breaks a log record.
func Sanitize(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))

	for _, c := range b {
		switch {
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\\':
			sb.WriteString(`\\`)
		case c < 0x20 || c > 0x7e:
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0f])
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}
