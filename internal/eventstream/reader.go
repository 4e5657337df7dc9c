package eventstream

import (
	"encoding/json"
	"io"
	"strings"
)

// Decoder applies the inverse framing of Writer: feed it arbitrary byte
// chunks, it buffers, splits on newline, and keeps any trailing partial line
// for the next feed. Payloads that straddle read boundaries therefore
// reassemble correctly.
//
// Malformed lines are never dropped silently. A line with the EVENT prefix
// that fails to parse comes back as a system event tagged
// "[CLIENT PARSE ERROR]"; a bare line comes back tagged "[SERVER LOG]".
type Decoder struct {
	buf strings.Builder
}

func (d *Decoder) Feed(p []byte) []StreamEvent {
	d.buf.Write(p)
	data := d.buf.String()
	idx := strings.LastIndexByte(data, '\n')
	if idx < 0 {
		return nil
	}
	complete := data[:idx]
	d.buf.Reset()
	d.buf.WriteString(data[idx+1:])

	var events []StreamEvent
	for _, line := range strings.Split(complete, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		events = append(events, decodeLine(line))
	}
	return events
}

// Flush drains a final unterminated line, if any. Call once at end of stream.
func (d *Decoder) Flush() []StreamEvent {
	rest := strings.TrimSpace(d.buf.String())
	d.buf.Reset()
	if rest == "" {
		return nil
	}
	return []StreamEvent{decodeLine(rest)}
}

func decodeLine(line string) StreamEvent {
	payload, ok := strings.CutPrefix(line, linePrefix)
	if !ok {
		return System("[SERVER LOG] " + line)
	}
	var ev StreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Type == "" {
		return System("[CLIENT PARSE ERROR] " + line)
	}
	return ev
}

// Consume reads r to EOF, decoding events and applying them to red.
// A read error ends consumption but everything decoded so far stays applied.
func Consume(r io.Reader, red *Reducer) error {
	buf := make([]byte, 4096)
	var d Decoder
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range d.Feed(buf[:n]) {
				red.Apply(ev)
			}
		}
		if err == io.EOF {
			for _, ev := range d.Flush() {
				red.Apply(ev)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
