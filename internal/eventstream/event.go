package eventstream

// Version is the protocol version carried in every event.
const Version = 1

type EventType string

const (
	EventTypeSystem         EventType = "system"
	EventTypeProcessingFile EventType = "processing_file"
	EventTypeTaskStart      EventType = "task_start"
	EventTypeTaskChunk      EventType = "task_chunk"
	EventTypeTaskEnd        EventType = "task_end"
	EventTypeError          EventType = "error"
)

// StreamEvent is the discriminated union carried on the wire, one JSON object
// per line. Which fields are meaningful depends on Type:
//
//	system          -> Message
//	processing_file -> Path, Content (capped snapshot)
//	task_start      -> TaskID, Title
//	task_chunk      -> TaskID, Chunk
//	task_end        -> TaskID, Error (empty on success)
//	error           -> Message (fatal; the stream closes after it)
type StreamEvent struct {
	V       int       `json:"v"`
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Path    string    `json:"path,omitempty"`
	Content string    `json:"content,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
	Title   string    `json:"title,omitempty"`
	Chunk   string    `json:"chunk,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func System(message string) StreamEvent {
	return StreamEvent{V: Version, Type: EventTypeSystem, Message: message}
}

func ProcessingFile(path, snapshot string) StreamEvent {
	return StreamEvent{V: Version, Type: EventTypeProcessingFile, Path: path, Content: snapshot}
}

func TaskStart(id, title string) StreamEvent {
	return StreamEvent{V: Version, Type: EventTypeTaskStart, TaskID: id, Title: title}
}

func TaskChunk(id, chunk string) StreamEvent {
	return StreamEvent{V: Version, Type: EventTypeTaskChunk, TaskID: id, Chunk: chunk}
}

// TaskEnd builds the terminal event for a task. err may be nil.
func TaskEnd(id string, err error) StreamEvent {
	ev := StreamEvent{V: Version, Type: EventTypeTaskEnd, TaskID: id}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Fatal is a stream-terminating error event.
func Fatal(message string) StreamEvent {
	return StreamEvent{V: Version, Type: EventTypeError, Message: message}
}

// Emitter is implemented by anything that can carry events to the consumer:
// the line-framed Writer, a websocket session, or a test collector.
type Emitter interface {
	Emit(ev StreamEvent) error
}
