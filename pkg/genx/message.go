package genx

import "slices"

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

var (
	_ Part = Text("")
	_ Part = (*Blob)(nil)
)

// Role tags a transcript message with its author.
type Role string

func (r Role) String() string {
	return string(r)
}

// Message is one transcript entry.
type Message struct {
	Role  Role
	Parts []Part
}

// Part is a piece of message content: Text or *Blob.
type Part interface {
	isPart()
}

// Text is a plain-text content part.
type Text string

func (Text) isPart() {}

// Blob is a binary content part, typically an image.
type Blob struct {
	MIMEType string
	Data     []byte
}

func (*Blob) isPart() {}

// Clone returns a deep copy of the blob.
func (b *Blob) Clone() *Blob {
	return &Blob{
		MIMEType: b.MIMEType,
		Data:     slices.Clone(b.Data),
	}
}

// UserText returns a user message holding a single text part.
func UserText(s string) Message {
	return Message{Role: RoleUser, Parts: []Part{Text(s)}}
}

// ModelText returns a model message holding a single text part.
func ModelText(s string) Message {
	return Message{Role: RoleModel, Parts: []Part{Text(s)}}
}

// UserImage returns a user message holding text followed by an image blob.
func UserImage(s, mimeType string, data []byte) Message {
	return Message{Role: RoleUser, Parts: []Part{Text(s), &Blob{MIMEType: mimeType, Data: data}}}
}

// TextContent concatenates the text parts of a message.
func (m Message) TextContent() string {
	var out string
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			out += string(t)
		}
	}
	return out
}
