package model

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentType string

const (
	ContentText       ContentType = "text"
	ContentImage      ContentType = "image"
	ContentStructured ContentType = "structured"
)

// ImageRef 图片内容的两种形态：刚上传时的内存字节，或从存储/服务端恢复的字符串引用。
// 渲染路径对两种形态一视同仁。
type ImageRef struct {
	Data []byte `json:"-"`
	URL  string `json:"url,omitempty"`
}

// Message 时间线上的一条消息。创建后不可变，唯一例外是打字动画
// 对同一条消息（同 ID、同 Sequence）的内容替换。
// Sequence 是时间线的唯一排序依据。
type Message struct {
	ID          string      `json:"id"`
	Role        Role        `json:"role"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
	Image       *ImageRef   `json:"image,omitempty"`
	Sequence    int         `json:"sequence"`
}

func NewTextMessage(role Role, content string, seq int) Message {
	return Message{
		ID:          newMessageID(),
		Role:        role,
		ContentType: ContentText,
		Content:     content,
		Sequence:    seq,
	}
}

func NewStructuredMessage(role Role, content string, seq int) Message {
	return Message{
		ID:          newMessageID(),
		Role:        role,
		ContentType: ContentStructured,
		Content:     content,
		Sequence:    seq,
	}
}

func NewImageMessage(role Role, image *ImageRef, seq int) Message {
	return Message{
		ID:          newMessageID(),
		Role:        role,
		ContentType: ContentImage,
		Image:       image,
		Sequence:    seq,
	}
}
