package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecTable is the table that describes the recording run itself.
const ExecTable = "exec_info"

// ExecInfo is one property of the recording run.
type ExecInfo struct {
	Property string
	Value    string
}

const timeLayout = "2006-01-02 15:04:05.000000000"

// execRecorder records when and how the program ran.
type execRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

func newExecRecorder(r DataRecorder) *execRecorder {
	r.CreateTable(ExecTable, ExecInfo{})

	return &execRecorder{recorder: r}
}

// Start notes the start time, command line and working directory.
func (e *execRecorder) Start() {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", time.Now().Format(timeLayout)},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	if cwd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}
}

// End queues the collected entries along with the end time.
func (e *execRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTable, entry)
	}

	e.recorder.InsertData(ExecTable,
		ExecInfo{"End Time", time.Now().Format(timeLayout)})

	e.entries = nil
}
