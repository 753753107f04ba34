package domain

// The interfaces below describe the live objects handed over by the
// workflow engine. Records are built from them and never refer back.

// OutputDir locates artifacts in a node's output directory.
type OutputDir interface {
	// HasAbiExt returns the path of the file carrying ext, or "" when
	// there is none.
	HasAbiExt(ext string) (string, error)
}

type Node interface {
	NodeID() int64
	ClassName() string
	Status() string
	Workdir() string
	OutDir() OutputDir
}

// Input is the input configuration of a task.
type Input interface {
	AsDict() map[string]any
	String() string
	// Structure returns the tagged dictionary of the input structure.
	Structure() map[string]any
}

// EventReport is the quality summary of a finished task.
type EventReport interface {
	NumWarnings() int
	NumErrors() int
	NumComments() int
	AsDict() map[string]any
}

type Task interface {
	Node
	Input() Input
	// EventReport returns nil when the output has not been analysed.
	EventReport() (EventReport, error)
}

type Work interface {
	Node
	Tasks() []Task
}

type Flow interface {
	Node
	Works() []Work
}

// MainOutput is implemented by nodes whose main text output lives outside
// their output directory.
type MainOutput interface {
	OutputFile() string
}

// GSRReader is implemented by tasks that can report the structure at the
// end of the run.
type GSRReader interface {
	FinalStructure() (map[string]any, error)
}
