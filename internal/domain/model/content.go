package model

// ContentKind is the shape of one inbound or outbound message.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentPhoto    ContentKind = "photo"
	ContentVideo    ContentKind = "video"
	ContentDocument ContentKind = "document"
	ContentAudio    ContentKind = "audio"
	ContentVoice    ContentKind = "voice"
	ContentPoll     ContentKind = "poll"
)

// Content is a transport-neutral message. Media carry a file id; polls are
// referenced by their origin chat and message so they can be forwarded.
type Content struct {
	Kind       ContentKind
	Text       string
	FileID     string
	Caption    string
	FromChatID int64
	MessageID  int
}

func (c Content) IsMedia() bool {
	switch c.Kind {
	case ContentPhoto, ContentVideo, ContentDocument, ContentAudio, ContentVoice:
		return true
	}
	return false
}

// Broadcastable reports whether a broadcast may carry this kind.
// Audio and voice are relayed one-to-one only.
func (c Content) Broadcastable() bool {
	switch c.Kind {
	case ContentText, ContentPhoto, ContentVideo, ContentDocument, ContentPoll:
		return true
	}
	return false
}

// Body returns the human text of the message: the text itself or the caption.
func (c Content) Body() string {
	if c.Kind == ContentText {
		return c.Text
	}
	return c.Caption
}
