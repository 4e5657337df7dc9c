package eventstream

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterEmitsTaggedLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Emit(System("hello")); err != nil {
		t.Fatalf("emit: %v", err)
	}
	line := buf.String()
	if !strings.HasPrefix(line, "EVENT: ") {
		t.Fatalf("missing prefix: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("missing newline terminator: %q", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("event must be a single line: %q", line)
	}
}

func TestWriterRejectsEmitAfterClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Close()
	w.Close() // idempotent
	if err := w.Emit(System("late")); err == nil {
		t.Fatal("expected error emitting on closed stream")
	}
	if buf.Len() != 0 {
		t.Fatalf("closed stream wrote bytes: %q", buf.String())
	}
}

func TestWriterPayloadWithCodeSurvivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	code := "if a < b && c > d {\n\treturn\n}"
	if err := w.Emit(TaskChunk("summary", code)); err != nil {
		t.Fatalf("emit: %v", err)
	}

	var d Decoder
	events := d.Feed(buf.Bytes())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Chunk != code {
		t.Fatalf("chunk mangled: %q", events[0].Chunk)
	}
}

// Scenario: a payload split mid-JSON across two reads must still decode to
// exactly one event.
func TestDecoderReassemblesSplitLine(t *testing.T) {
	var d Decoder
	if got := d.Feed([]byte(`EVENT: {"v":1,"type":"system","mess`)); len(got) != 0 {
		t.Fatalf("partial line produced events: %v", got)
	}
	events := d.Feed([]byte("age\":\"hi\"}\n"))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventTypeSystem || events[0].Message != "hi" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

// Framing must be insensitive to how the bytes are chunked: every split of
// the same stream yields the same event sequence.
func TestDecoderArbitraryChunking(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	seq := []StreamEvent{
		System("starting"),
		TaskStart("summary", "Project Summary"),
		TaskChunk("summary", "part one "),
		TaskChunk("summary", "part two"),
		TaskEnd("summary", nil),
	}
	for _, ev := range seq {
		if err := w.Emit(ev); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	raw := buf.Bytes()

	for _, chunkSize := range []int{1, 2, 3, 7, 16, len(raw)} {
		var d Decoder
		var got []StreamEvent
		for off := 0; off < len(raw); off += chunkSize {
			end := off + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			got = append(got, d.Feed(raw[off:end])...)
		}
		got = append(got, d.Flush()...)
		if len(got) != len(seq) {
			t.Fatalf("chunk=%d: got %d events, want %d", chunkSize, len(got), len(seq))
		}
		for i := range seq {
			if got[i].Type != seq[i].Type || got[i].TaskID != seq[i].TaskID || got[i].Chunk != seq[i].Chunk {
				t.Fatalf("chunk=%d: event %d mismatch: %+v vs %+v", chunkSize, i, got[i], seq[i])
			}
		}
	}
}

func TestDecoderSurfacesMalformedLines(t *testing.T) {
	var d Decoder
	events := d.Feed([]byte("EVENT: {not json}\nplain status line\n"))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !strings.HasPrefix(events[0].Message, "[CLIENT PARSE ERROR]") {
		t.Fatalf("malformed event line not surfaced: %+v", events[0])
	}
	if !strings.HasPrefix(events[1].Message, "[SERVER LOG]") {
		t.Fatalf("bare line not surfaced: %+v", events[1])
	}
}

func TestReducerLifecycle(t *testing.T) {
	r := NewReducer()
	r.Apply(System("booting"))
	r.Apply(TaskStart("summary", "Project Summary"))
	r.Apply(TaskChunk("summary", "hello "))
	r.Apply(TaskChunk("summary", "world"))
	r.Apply(TaskEnd("summary", nil))

	tasks := r.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	got := tasks[0]
	if got.Status != StatusComplete || got.Content != "hello world" {
		t.Fatalf("unexpected task state: %+v", got)
	}
	if len(r.Log()) != 1 {
		t.Fatalf("log entries: %v", r.Log())
	}
}

func TestReducerTerminalStatesDoNotRevert(t *testing.T) {
	r := NewReducer()
	r.Apply(TaskStart("errors", "Error Trends"))
	r.Apply(StreamEvent{V: Version, Type: EventTypeTaskEnd, TaskID: "errors", Error: "engine failed"})
	r.Apply(TaskChunk("errors", "late chunk"))
	r.Apply(TaskEnd("errors", nil))

	got := r.Tasks()[0]
	if got.Status != StatusError || got.Error != "engine failed" {
		t.Fatalf("terminal state reverted: %+v", got)
	}
	if got.Content != "" {
		t.Fatalf("chunk applied after terminal event: %q", got.Content)
	}
}

func TestReducerChunkForUnknownTaskIsDiagnosed(t *testing.T) {
	r := NewReducer()
	r.Apply(TaskChunk("ghost", "boo"))
	if len(r.Tasks()) != 0 {
		t.Fatal("unknown chunk created a task")
	}
	log := r.Log()
	if len(log) != 1 || !strings.Contains(log[0], "ghost") {
		t.Fatalf("missing diagnostic: %v", log)
	}
	// Nothing failed to parse here, so the diagnostic must not claim it did.
	if !strings.HasPrefix(log[0], "[PROTOCOL]") || strings.Contains(log[0], "PARSE") {
		t.Fatalf("ordering violation mislabelled: %q", log[0])
	}
}

func TestConsumeReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.Emit(System("scanning directory: /"))
	_ = w.Emit(TaskStart("stack", "Tech Stack"))
	_ = w.Emit(TaskChunk("stack", "Go 1.24"))
	_ = w.Emit(TaskEnd("stack", nil))

	r := NewReducer()
	if err := Consume(&buf, r); err != nil {
		t.Fatalf("consume: %v", err)
	}
	tasks := r.Tasks()
	if len(tasks) != 1 || tasks[0].Content != "Go 1.24" || tasks[0].Status != StatusComplete {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}
