package ax26

import "bytes"

// EscapeTerminator protects a compressed payload so that DataEnd can only
// appear in the stream as the real terminator.
//
// Every Escape byte is doubled and every literal DataEnd occurrence is
// prefixed with Escape.
func EscapeTerminator(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data) + len(data)/64 + 2)

	for i := 0; i < len(data); {
		switch {
		case data[i] == Escape:
			out.Write([]byte{Escape, Escape})
			i++
		case bytes.HasPrefix(data[i:], DataEnd):
			out.WriteByte(Escape)
			out.Write(DataEnd)
			i += len(DataEnd)
		default:
			out.WriteByte(data[i])
			i++
		}
	}
	return out.Bytes()
}

// UnescapeTerminator reverses EscapeTerminator. The input must not include
// the terminator itself.
func UnescapeTerminator(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))

	for i := 0; i < len(data); {
		if data[i] == Escape && i+1 < len(data) {
			if data[i+1] == Escape {
				out.WriteByte(Escape)
				i += 2
				continue
			}
			if bytes.HasPrefix(data[i+1:], DataEnd) {
				out.Write(DataEnd)
				i += 1 + len(DataEnd)
				continue
			}
		}
		out.WriteByte(data[i])
		i++
	}
	return out.Bytes()
}

// terminated reports whether buf ends with an unescaped DataEnd.
// A DataEnd preceded by an odd run of Escape bytes is a literal occurrence.
func terminated(buf []byte) bool {
	if !bytes.HasSuffix(buf, DataEnd) {
		return false
	}
	run := 0
	for i := len(buf) - len(DataEnd) - 1; i >= 0 && buf[i] == Escape; i-- {
		run++
	}
	return run%2 == 0
}
