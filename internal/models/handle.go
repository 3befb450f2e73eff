package models

// Handle is an opaque reference to audio already transferred to the model
// provider. It is consumed by one generation call.
type Handle struct {
	Name     string
	URI      string
	MIMEType string
}

// Part is one element of a generation request: either text or a handle.
type Part struct {
	Text   string
	Handle *Handle
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func HandlePart(h Handle) Part {
	return Part{Handle: &h}
}

// IsHandle reports whether the part references uploaded content.
func (p Part) IsHandle() bool {
	return p.Handle != nil
}
