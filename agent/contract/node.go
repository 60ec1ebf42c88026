package contract

import "encoding/json"

// NodeKind is the closed set of canvas node kinds the agent understands.
// Unknown kinds decode to NodeKindUnknown and contribute nothing to the
// model context; this keeps adding a new kind an explicit decision here
// rather than a silently skipped string somewhere downstream.
type NodeKind string

const (
	NodeKindDriveFile NodeKind = "googleDrive"
	NodeKindLocation  NodeKind = "location"
	NodeKindUnknown   NodeKind = ""
)

// NodeContext is an ephemeral snapshot of one connected canvas node,
// constructed fresh per chat request. Exactly one payload pointer matching
// Kind is non-nil; NodeKindUnknown carries none.
type NodeContext struct {
	NodeID   string
	Kind     NodeKind
	Drive    *DriveFileNode
	Location *LocationNode
}

type DriveFileNode struct {
	FileID   string          `json:"fileId"`
	FileName string          `json:"fileName,omitempty"`
	FileType string          `json:"fileType,omitempty"`
	MIMEType string          `json:"mimeType,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
}

type LocationNode struct {
	Region      string       `json:"region,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// nodeWire is the {nodeId, nodeType, data} shape the canvas sends.
type nodeWire struct {
	NodeID   string          `json:"nodeId"`
	NodeType string          `json:"nodeType"`
	Data     json.RawMessage `json:"data"`
}

func (n *NodeContext) UnmarshalJSON(raw []byte) error {
	var wire nodeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	n.NodeID = wire.NodeID
	n.Drive = nil
	n.Location = nil

	switch NodeKind(wire.NodeType) {
	case NodeKindDriveFile:
		var drive DriveFileNode
		if len(wire.Data) > 0 {
			if err := json.Unmarshal(wire.Data, &drive); err != nil {
				return err
			}
		}
		n.Kind = NodeKindDriveFile
		n.Drive = &drive
	case NodeKindLocation:
		var loc LocationNode
		if len(wire.Data) > 0 {
			if err := json.Unmarshal(wire.Data, &loc); err != nil {
				return err
			}
		}
		n.Kind = NodeKindLocation
		n.Location = &loc
	default:
		n.Kind = NodeKindUnknown
	}
	return nil
}

func (n NodeContext) MarshalJSON() ([]byte, error) {
	wire := nodeWire{NodeID: n.NodeID, NodeType: string(n.Kind)}

	var payload any
	switch n.Kind {
	case NodeKindDriveFile:
		payload = n.Drive
	case NodeKindLocation:
		payload = n.Location
	case NodeKindUnknown:
		payload = nil
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		wire.Data = data
	}
	return json.Marshal(wire)
}
