package eventstream

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusComplete   TaskStatus = "complete"
	StatusError      TaskStatus = "error"
)

// AnalysisTask is the consumer-side record for one analysis stage, built up
// incrementally from task_* events. Status only moves forward:
// pending -> in_progress -> complete|error. Terminal states never revert.
type AnalysisTask struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Status  TaskStatus `json:"status"`
	Content string     `json:"content"`
	Error   string     `json:"error,omitempty"`
}

func (t *AnalysisTask) terminal() bool {
	return t.Status == StatusComplete || t.Status == StatusError
}

// Reducer folds a stream of events into the evolving task list plus a log of
// everything that is not task output (system notices, file progress,
// diagnostics). It relies on the producer's ordering guarantee; it does not
// reorder events itself.
type Reducer struct {
	tasks []*AnalysisTask
	index map[string]*AnalysisTask
	log   []string
}

func NewReducer() *Reducer {
	return &Reducer{index: make(map[string]*AnalysisTask)}
}

func (r *Reducer) Apply(ev StreamEvent) {
	switch ev.Type {
	case EventTypeSystem:
		r.log = append(r.log, ev.Message)
	case EventTypeProcessingFile:
		r.log = append(r.log, "processing file: "+ev.Path)
	case EventTypeTaskStart:
		if _, ok := r.index[ev.TaskID]; ok {
			// Duplicate start; the first one wins.
			return
		}
		t := &AnalysisTask{ID: ev.TaskID, Title: ev.Title, Status: StatusInProgress}
		r.index[ev.TaskID] = t
		r.tasks = append(r.tasks, t)
	case EventTypeTaskChunk:
		t, ok := r.index[ev.TaskID]
		if !ok || t.terminal() {
			// The event parsed fine; the producer broke its ordering contract.
			r.log = append(r.log, "[PROTOCOL] chunk for unknown or finished task "+ev.TaskID)
			return
		}
		t.Content += ev.Chunk
	case EventTypeTaskEnd:
		t, ok := r.index[ev.TaskID]
		if !ok || t.terminal() {
			return
		}
		if ev.Error != "" {
			t.Status = StatusError
			t.Error = ev.Error
		} else {
			t.Status = StatusComplete
		}
	case EventTypeError:
		r.log = append(r.log, "[STREAM ERROR] "+ev.Message)
	default:
		r.log = append(r.log, "[PROTOCOL] unknown event type "+string(ev.Type))
	}
}

// Tasks returns a snapshot of the task list in arrival order.
func (r *Reducer) Tasks() []AnalysisTask {
	out := make([]AnalysisTask, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = *t
	}
	return out
}

func (r *Reducer) Log() []string {
	return append([]string(nil), r.log...)
}
