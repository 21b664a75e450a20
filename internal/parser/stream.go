package parser

import (
	"strings"
	"unicode"
)

// TextFromContentStream pulls shown strings out of a decoded page content
// stream. It understands the text-showing operators (Tj, TJ, ', ") and
// treats line-moving operators (Td, TD, T*, ET) as line breaks. Hex strings
// and font encodings are not decoded.
func TextFromContentStream(data []byte) string {
	var (
		sb      strings.Builder
		pending []string // string operands since the last operator
	)

	flushLine := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '(':
			s, next := readLiteral(data, i)
			pending = append(pending, s)
			i = next
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case isOperatorByte(c):
			start := i
			for i < len(data) && isOperatorByte(data[i]) {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				for _, s := range pending {
					sb.WriteString(s)
				}
			case "'", "\"":
				flushLine()
				for _, s := range pending {
					sb.WriteString(s)
				}
			case "Td", "TD", "T*", "ET":
				flushLine()
			}
			pending = pending[:0]
		default:
			i++
		}
	}

	return cleanStreamText(sb.String())
}

func isOperatorByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '*' || c == '\'' || c == '"'
}

// readLiteral decodes a parenthesised string starting at data[start] and
// returns it with the index just past the closing paren. Balanced inner
// parens are kept.
func readLiteral(data []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for i < len(data) {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			i = decodeEscape(data, i, &sb)
			continue
		case c == '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
		case c == ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String(), i
}

// decodeEscape handles the character after a backslash at data[i] and
// returns the index of the next unread byte.
func decodeEscape(data []byte, i int, sb *strings.Builder) int {
	switch c := data[i]; c {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'b', 'f':
		// Ignored.
	case '\n':
		// Line continuation.
	case '\r':
		if i+1 < len(data) && data[i+1] == '\n' {
			i++
		}
	default:
		if c >= '0' && c <= '7' {
			val := 0
			n := 0
			for n < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7' {
				val = val*8 + int(data[i]-'0')
				i++
				n++
			}
			sb.WriteByte(byte(val))
			return i
		}
		sb.WriteByte(c)
	}
	return i + 1
}

// cleanStreamText collapses runs of spaces, drops control characters and
// trims each line. Line breaks are kept.
func cleanStreamText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				prevSpace = true
			case unicode.IsPrint(r):
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
