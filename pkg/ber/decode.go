package ber

// Decode reads one element from buf. It returns the element and the number
// of bytes consumed. When buf holds fewer bytes than the element declares,
// Decode returns ErrIncomplete so a connection layer can await more input;
// structural damage is reported as *DecodeError instead.
//
// Non-minimal long-form lengths are accepted for interoperability, but
// Encode always produces the shortest form.
func Decode(buf []byte) (*Element, int, error) {
	return decodeAt(buf, 0)
}

func decodeAt(buf []byte, base int) (*Element, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}

	off := 0
	first := buf[off]
	off++

	el := &Element{
		Class:       int(first & 0xC0),
		Constructed: first&0x20 != 0,
		Tag:         int(first & 0x1F),
	}

	// Long-form tag number.
	if el.Tag == 0x1F {
		n := 0
		for {
			if off >= len(buf) {
				return nil, 0, ErrIncomplete
			}
			b := buf[off]
			off++
			if n > 1<<24 {
				return nil, 0, &DecodeError{Offset: base + off - 1, Message: "tag number overflow"}
			}
			n = n<<7 | int(b&0x7F)
			if b&0x80 == 0 {
				break
			}
		}
		el.Tag = n
	}

	length, lenBytes, err := decodeLength(buf[off:], base+off, el.Constructed)
	if err != nil {
		return nil, 0, err
	}
	off += lenBytes

	if length > len(buf)-off {
		return nil, 0, ErrIncomplete
	}
	content := buf[off : off+length]

	if el.Constructed {
		used := 0
		for used < length {
			child, n, err := decodeAt(content[used:], base+off+used)
			if err == ErrIncomplete {
				// The outer length claimed more content than its
				// children occupy; that is damage, not a short read.
				return nil, 0, &DecodeError{Offset: base + off + used, Message: "truncated child element inside constructed value"}
			}
			if err != nil {
				return nil, 0, err
			}
			el.Children = append(el.Children, child)
			used += n
		}
	} else {
		el.Value = make([]byte, length)
		copy(el.Value, content)
	}

	return el, off + length, nil
}

// decodeLength reads a definite length. It returns the length value and the
// number of bytes the length field occupies.
func decodeLength(buf []byte, base int, constructed bool) (int, int, error) {
	if len(buf) == 0 {
		return 0, 0, ErrIncomplete
	}
	first := buf[0]
	if first&longFormBit == 0 {
		return int(first), 1, nil
	}

	n := int(first & 0x7F)
	if n == 0 {
		// 0x80: indefinite form. Only legal on constructed elements, and
		// unsupported either way; the error must stay distinct so callers
		// never mistake it for truncation.
		if !constructed {
			return 0, 0, &DecodeError{Offset: base, Message: "indefinite length on primitive element", Err: ErrIndefiniteLength}
		}
		return 0, 0, &DecodeError{Offset: base, Message: "indefinite length", Err: ErrIndefiniteLength}
	}
	if n > 4 {
		return 0, 0, &DecodeError{Offset: base, Message: "length field too wide"}
	}
	if 1+n > len(buf) {
		return 0, 0, ErrIncomplete
	}

	length := 0
	for i := 1; i <= n; i++ {
		length = length<<8 | int(buf[i])
	}
	if length < 0 {
		return 0, 0, &DecodeError{Offset: base, Message: "length overflow"}
	}
	return length, 1 + n, nil
}
