package client

import "unicode/utf8"

// streamDecoder converts byte chunks to text without corrupting multi-byte
// sequences split across chunk boundaries. Trailing bytes that could still
// become a complete rune are carried into the next call.
type streamDecoder struct {
	carry []byte
}

// Decode returns the text completed by this chunk
func (d *streamDecoder) Decode(p []byte) string {
	buf := p
	if len(d.carry) > 0 {
		buf = append(d.carry, p...)
		d.carry = nil
	}

	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(buf[i]) {
			continue
		}
		if !utf8.FullRune(buf[i:]) {
			// Incomplete trailing rune, hold it back
			cut = i
		}
		break
	}

	if cut < len(buf) {
		d.carry = append([]byte(nil), buf[cut:]...)
	}
	return string(buf[:cut])
}

// Flush returns whatever bytes remain buffered. Called at end of stream;
// a still-incomplete sequence at that point is genuinely malformed input.
func (d *streamDecoder) Flush() string {
	s := string(d.carry)
	d.carry = nil
	return s
}
