package domain

// Status strings reported by the workflow engine. Records store them as
// free text; consumers query by the literal value.
const (
	StatusInitialized = "Initialized"
	StatusLocked      = "Locked"
	StatusReady       = "Ready"
	StatusSubmitted   = "Submitted"
	StatusRunning     = "Running"
	StatusDone        = "Done"
	StatusAbiCritical = "AbiCritical"
	StatusQCritical   = "QCritical"
	StatusUnconverged = "Unconverged"
	StatusError       = "Error"
	StatusCompleted   = "Completed"
)

// NodeRecord identifies a task, work or flow. It is written once from the
// live node and never updated.
type NodeRecord struct {
	NodeID    int64  `json:"node_id" bson:"node_id"`
	NodeClass string `json:"node_class" bson:"node_class"`
	Status    string `json:"status" bson:"status"`
	Workdir   string `json:"workdir" bson:"workdir"`
}

func (n *NodeRecord) missingFields() []string {
	var out []string
	if n.NodeClass == "" {
		out = append(out, "node_class")
	}
	if n.Status == "" {
		out = append(out, "status")
	}
	if n.Workdir == "" {
		out = append(out, "workdir")
	}
	return out
}

// Validate reports the required node fields that are empty.
func (n *NodeRecord) Validate() error {
	return missing("node", n.missingFields())
}

func (n *NodeRecord) field(name string) (any, bool) {
	switch name {
	case "node_id":
		return n.NodeID, true
	case "node_class":
		return n.NodeClass, true
	case "status":
		return n.Status, true
	case "workdir":
		return n.Workdir, true
	}
	return nil, false
}
