package sequencer

import (
	"context"
	"log"

	"repolens/internal/eventstream"
	"repolens/internal/llmclient"
)

// Result is the terminal record for one executed task.
type Result struct {
	ID      string
	Title   string
	Content string
	Err     error
}

// Sequencer runs an ordered task list against one corpus, strictly one task
// at a time, streaming every increment through the emitter.
//
// The central correctness property: one task's failure is isolated to that
// task's terminal event. The sequence always continues, so a caller still
// gets every stage that succeeded.
type Sequencer struct {
	Engine llmclient.Engine
	Tasks  []Task
}

func New(engine llmclient.Engine) *Sequencer {
	return &Sequencer{Engine: engine, Tasks: DefaultTasks()}
}

// Run executes the task list in order. For each task it emits task_start,
// a task_chunk per engine fragment, then exactly one task_end carrying the
// task's error if it failed. Run itself returns an error only when the
// emitter does, which means the consumer is gone and there is no point
// continuing.
func (s *Sequencer) Run(ctx context.Context, corpusText string, emit eventstream.Emitter) ([]Result, error) {
	results := make([]Result, 0, len(s.Tasks))
	for _, task := range s.Tasks {
		if err := emit.Emit(eventstream.TaskStart(task.ID, task.Title)); err != nil {
			return results, err
		}

		var emitErr error
		content, taskErr := s.Engine.GenerateStream(ctx, task.Prompt(corpusText), func(chunk string) {
			if emitErr != nil {
				return
			}
			emitErr = emit.Emit(eventstream.TaskChunk(task.ID, chunk))
		})
		if emitErr != nil {
			return results, emitErr
		}
		if taskErr != nil {
			log.Printf("sequencer: task %s failed: %v", task.ID, taskErr)
		}

		if err := emit.Emit(eventstream.TaskEnd(task.ID, taskErr)); err != nil {
			return results, err
		}
		results = append(results, Result{ID: task.ID, Title: task.Title, Content: content, Err: taskErr})
	}
	return results, nil
}
