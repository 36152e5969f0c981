package decoder

// Cursor is a bounds-checked sequential reader over an immutable byte buffer.
// Slices returned by Peek and Read alias the underlying buffer.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, &BufferTooShortError{Deficit: c.pos + n - len(c.buf)}
	}
	return c.buf[c.pos : c.pos+n : c.pos+n], nil
}

// Read returns the next n bytes and advances past them.
func (c *Cursor) Read(n int) ([]byte, error) {
	b, err := c.Peek(n)
	if err != nil {
		return nil, err
	}
	c.pos += n
	return b, nil
}

// Rest consumes and returns everything left in the buffer.
func (c *Cursor) Rest() []byte {
	b := c.buf[c.pos:]
	c.pos = len(c.buf)
	return b
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Pos returns the current read offset.
func (c *Cursor) Pos() int { return c.pos }
