package message

// Part is one content block inside a Message. Providers interleave the
// four kinds freely within a single assistant turn, so consumers handle
// parts via type switch.
type Part interface {
	isPart()
}

// TextPart is plain text produced by the user or the model.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ImagePart is a base64-encoded PNG attached to a user message.
type ImagePart struct {
	Base64 string
}

func (ImagePart) isPart() {}

// ToolRequestPart is a tool invocation requested by the model.
type ToolRequestPart struct {
	CallID    string
	Name      string
	Arguments map[string]any
}

func (ToolRequestPart) isPart() {}

// ToolResultPart is the outcome of one tool invocation. It references
// exactly one preceding ToolRequestPart via CallID.
type ToolResultPart struct {
	CallID   string
	Name     string
	Content  string
	IsError  bool
	Canceled bool
}

func (ToolResultPart) isPart() {}
