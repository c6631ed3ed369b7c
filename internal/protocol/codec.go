package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MaxLineBytes bounds a single encoded envelope.
const MaxLineBytes = 1 << 20

// Marshal encodes env as one newline-terminated JSON line.
func Marshal(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return append(b, '\n'), nil
}

// Unmarshal decodes and validates one line.  Unknown JSON fields are
// ignored.  Every error it returns wraps ErrMalformed.
func Unmarshal(line []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(line), &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Decoder reads envelopes from a stream, one per line.
type Decoder struct {
	sc *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxLineBytes)
	return &Decoder{sc: sc}
}

// Decode returns the next envelope.  Errors wrapping ErrMalformed concern
// only the current line and the caller may keep decoding; any other
// error, including io.EOF, ends the stream.  Blank lines are skipped.
func (d *Decoder) Decode() (Envelope, error) {
	for d.sc.Scan() {
		line := d.sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return Unmarshal(line)
	}
	if err := d.sc.Err(); err != nil {
		return Envelope{}, err
	}
	return Envelope{}, io.EOF
}

// Encoder writes envelopes to a stream.  It is safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode writes env followed by a newline.
func (e *Encoder) Encode(env Envelope) error {
	b, err := Marshal(env)
	if err != nil {
		return err
	}
	return e.WriteLine(b)
}

// WriteLine writes an already encoded line.
func (e *Encoder) WriteLine(line []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.w.Write(line)
	return err
}
