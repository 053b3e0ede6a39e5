// Package transfer 负责上传页到会话页的一次性交接。
//
// 原型是页面级临时存储里的四个固定键；这里收敛成一个显式的
// 深度为一的信箱：写一次、消费一次，Load 之后立即清空。
package transfer

import "sync"

// 四个固定存储键，与交接载荷的四个字段一一对应
const (
	KeyUploadedImage = "uploadedFile"
	KeySummary       = "analysisResult"
	KeyAnalysisFull  = "analysisFull"
	KeyAnalysisID    = "analysisId"
)

// PendingTransfer 跨页面交接的载荷。字段允许部分缺失，
// 缺失字段留空，由消费方决定兜底行为。
type PendingTransfer struct {
	ImageData  string
	Summary    string
	Analysis   string
	AnalysisID string
}

// HasImage 载荷里是否带着可用的图片
func (t PendingTransfer) HasImage() bool {
	return t.ImageData != ""
}

func (t PendingTransfer) isEmpty() bool {
	return t.ImageData == "" && t.Summary == "" && t.Analysis == "" && t.AnalysisID == ""
}

// Store 深度为一的交接信箱。Save 覆盖旧值，Load 读取并立即清空；
// 同一载荷绝不会被发放两次。
type Store struct {
	mu   sync.Mutex
	kv   map[string]string
	full bool
}

func NewStore() *Store {
	return &Store{kv: make(map[string]string)}
}

func (s *Store) Save(t PendingTransfer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kv[KeyUploadedImage] = t.ImageData
	s.kv[KeySummary] = t.Summary
	s.kv[KeyAnalysisFull] = t.Analysis
	s.kv[KeyAnalysisID] = t.AnalysisID
	s.full = true
}

// Load 返回完整载荷，或者明确的"不存在"。部分键缺失时照样返回，
// 缺失字段留空。第二次调用必然返回不存在。
func (s *Store) Load() (PendingTransfer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := PendingTransfer{
		ImageData:  s.kv[KeyUploadedImage],
		Summary:    s.kv[KeySummary],
		Analysis:   s.kv[KeyAnalysisFull],
		AnalysisID: s.kv[KeyAnalysisID],
	}

	present := s.full || !t.isEmpty()

	// 不论消费结果如何，四个键一起清空
	delete(s.kv, KeyUploadedImage)
	delete(s.kv, KeySummary)
	delete(s.kv, KeyAnalysisFull)
	delete(s.kv, KeyAnalysisID)
	s.full = false

	return t, present
}
