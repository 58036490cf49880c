package ber

// Encode serializes the element with minimal definite-length encoding.
// Encoding is total and deterministic for well-formed elements: the same
// element always yields the same bytes.
func Encode(e *Element) []byte {
	buf := make([]byte, 0, 64)
	return appendElement(buf, e)
}

func appendElement(buf []byte, e *Element) []byte {
	buf = appendTag(buf, e)

	var content []byte
	if e.Constructed {
		for _, child := range e.Children {
			content = appendElement(content, child)
		}
	} else {
		content = e.Value
	}

	buf = appendLength(buf, len(content))
	return append(buf, content...)
}

func appendTag(buf []byte, e *Element) []byte {
	first := byte(e.Class)
	if e.Constructed {
		first |= 0x20
	}
	if e.Tag <= 30 {
		return append(buf, first|byte(e.Tag))
	}

	buf = append(buf, first|0x1F)
	// Base-128 with continuation bits, big-endian.
	var stack [5]byte
	n := 0
	for v := e.Tag; v > 0; v >>= 7 {
		stack[n] = byte(v & 0x7F)
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := stack[i]
		if i > 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

func appendLength(buf []byte, length int) []byte {
	if length <= maxShortFormLength {
		return append(buf, byte(length))
	}
	n := 0
	for v := length; v > 0; v >>= 8 {
		n++
	}
	buf = append(buf, byte(longFormBit|n))
	for i := n - 1; i >= 0; i-- {
		buf = append(buf, byte(length>>(uint(i)*8)))
	}
	return buf
}
