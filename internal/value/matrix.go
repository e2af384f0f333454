package value

// ParseScalar implements the exact accumulation order of the original
// implementation's value.c:scalar_parse: the integer part is folded as
// r = r*10 + digit, and after a single '.' the fractional part is folded as
// f /= 10; r += f*digit. A second '.' is a parse error. There is no sign and
// no exponent — spec.md §9's Open Question is resolved by preserving this
// verbatim, including the surprising acceptance of a trailing dot ("1.").
func ParseScalar(buf string) (float64, bool) {
	var r, f float64 = 0, 1
	i := 0
	seenDot := false
	for ; i < len(buf); i++ {
		if buf[i] == '.' {
			seenDot = true
			break
		}
		if buf[i] < '0' || buf[i] > '9' {
			return 0, false
		}
		r = r*10 + float64(buf[i]-'0')
	}
	if seenDot {
		i++
		for ; i < len(buf); i++ {
			if buf[i] == '.' {
				return 0, false
			}
			if buf[i] < '0' || buf[i] > '9' {
				return 0, false
			}
			f /= 10
			r += f * float64(buf[i]-'0')
		}
	}
	return r, true
}

// Unescape turns a quoted string literal's interior bytes into the runtime
// string value, processing \n, \q (-> '"'), and \\ (spec.md §3, §6).
func Unescape(interior string) []byte {
	out := make([]byte, 0, len(interior))
	for i := 0; i < len(interior); i++ {
		c := interior[i]
		if c == '\\' && i+1 < len(interior) {
			switch interior[i+1] {
			case 'n':
				out = append(out, '\n')
				i++
				continue
			case 'q':
				out = append(out, '"')
				i++
				continue
			case '\\':
				out = append(out, '\\')
				i++
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// index1 converts a 1-based linear index to a 0-based slice offset, bounds
// checked against height*width.
func index1(m *Matrix, k float64) (int, bool) {
	i := int(k)
	n := int(m.Height) * int(m.Width)
	if i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// index2 converts 1-based (row, col) to a 0-based linear offset.
func index2(m *Matrix, row, col float64) (int, bool) {
	i, j := int(row), int(col)
	if i < 1 || i > int(m.Height) || j < 1 || j > int(m.Width) {
		return 0, false
	}
	return (i-1)*int(m.Width) + (j - 1), true
}

// Get1 reads element k (1-based, row-major) of m.
func Get1(m *Matrix, k Value) (Value, error) {
	if k.Kind != KindScalar {
		return Nil, errIndexKind(k)
	}
	off, ok := index1(m, k.Scalar)
	if !ok {
		return Nil, errOutOfBounds()
	}
	return Scalar(m.Elems[off]), nil
}

// Get2 reads element (row, col) (1-based) of m.
func Get2(m *Matrix, row, col Value) (Value, error) {
	if row.Kind != KindScalar || col.Kind != KindScalar {
		return Nil, errIndexKind(row)
	}
	off, ok := index2(m, row.Scalar, col.Scalar)
	if !ok {
		return Nil, errOutOfBounds()
	}
	return Scalar(m.Elems[off]), nil
}

// Set1 writes v into element k (1-based) of m.
func Set1(m *Matrix, k, v Value) error {
	if k.Kind != KindScalar {
		return errIndexKind(k)
	}
	if v.Kind != KindScalar {
		return errNotScalar()
	}
	off, ok := index1(m, k.Scalar)
	if !ok {
		return errOutOfBounds()
	}
	m.Elems[off] = v.Scalar
	return nil
}

// Set2 writes v into element (row, col) (1-based) of m.
func Set2(m *Matrix, row, col, v Value) error {
	if row.Kind != KindScalar || col.Kind != KindScalar {
		return errIndexKind(row)
	}
	if v.Kind != KindScalar {
		return errNotScalar()
	}
	off, ok := index2(m, row.Scalar, col.Scalar)
	if !ok {
		return errOutOfBounds()
	}
	m.Elems[off] = v.Scalar
	return nil
}

// ConstructMatrix builds a new matrix from row-major elems, which must all
// be scalars.
func ConstructMatrix(elems []Value, height, width uint) (*Matrix, error) {
	m := NewMatrix(height, width)
	for i, e := range elems {
		if e.Kind != KindScalar {
			return nil, errNotScalar()
		}
		m.Elems[i] = e.Scalar
	}
	return m, nil
}

type valueError string

func (e valueError) Error() string { return string(e) }

func errIndexKind(k Value) error { return valueError("index must be a scalar") }
func errOutOfBounds() error      { return valueError("index out of bounds") }
func errNotScalar() error        { return valueError("assigned value must be a scalar") }
