package prompt

import (
	"encoding/json"
	"strconv"
	"strings"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

// Build serializes the connected-node context and the conversation history
// into the textual block appended to the system instructions. It is pure:
// no I/O, no side effects, and identical inputs always produce identical
// output. Nodes and messages render in input order.
func Build(messages []contractx.ChatMessage, connectedNodes []contractx.NodeContext) string {
	var b strings.Builder

	if len(connectedNodes) > 0 {
		b.WriteString("## Context from Connected Nodes:\n\n")
		for _, node := range connectedNodes {
			writeNode(&b, node)
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("## Conversation History:\n\n")
	for _, msg := range messages {
		b.WriteString(roleLabel(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

func writeNode(b *strings.Builder, node contractx.NodeContext) {
	switch node.Kind {
	case contractx.NodeKindDriveFile:
		writeDriveFile(b, node.NodeID, node.Drive)
	case contractx.NodeKindLocation:
		writeLocation(b, node.NodeID, node.Location)
	case contractx.NodeKindUnknown:
		// unrecognized kinds contribute nothing
	}
}

func writeDriveFile(b *strings.Builder, nodeID string, file *contractx.DriveFileNode) {
	b.WriteString("### Google Drive Reference (" + nodeID + "):\n")
	if file == nil {
		b.WriteString("\n")
		return
	}
	if file.FileName != "" {
		b.WriteString("File: " + file.FileName + "\n")
	}
	if file.FileType != "" {
		b.WriteString("Type: " + file.FileType + "\n")
	}
	if len(file.Content) > 0 {
		switch file.FileType {
		case "document":
			b.WriteString("Content: " + documentText(file.Content) + "\n")
		case "spreadsheet":
			b.WriteString("Data: " + spreadsheetDump(file.Content) + "\n")
		default:
			b.WriteString("Metadata: " + rawDump(file.Content) + "\n")
		}
	}
	b.WriteString("\n")
}

func writeLocation(b *strings.Builder, nodeID string, loc *contractx.LocationNode) {
	b.WriteString("### Location Information (" + nodeID + "):\n")
	if loc != nil {
		if loc.Region != "" {
			b.WriteString("Region: " + loc.Region + "\n")
		}
		if loc.Coordinates != nil {
			b.WriteString("Coordinates: " + formatFloat(loc.Coordinates.Lat) + ", " + formatFloat(loc.Coordinates.Lng) + "\n")
		}
	}
	b.WriteString("\n")
}

// documentText extracts the document body from the content payload.
func documentText(raw json.RawMessage) string {
	var doc struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Content != "" {
		return doc.Content
	}
	return "No content available"
}

// spreadsheetDump renders the tabular values when present, falling back to
// the whole content structure.
func spreadsheetDump(raw json.RawMessage) string {
	var sheet struct {
		Values []json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(raw, &sheet); err == nil && sheet.Values != nil {
		if out, err := json.MarshalIndent(sheet.Values, "", "  "); err == nil {
			return string(out)
		}
	}
	return rawDump(raw)
}

func rawDump(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func roleLabel(role contractx.Role) string {
	if role == contractx.RoleUser {
		return "User"
	}
	return "Assistant"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
