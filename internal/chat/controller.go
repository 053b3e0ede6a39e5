// Package chat 实现会话控制器：持有消息时间线，编排
// 上传 → 分析 → 播种时间线 → 追问 → 动画回复 的完整流程。
package chat

import (
	"context"
	"sort"
	"strings"
	"sync"

	"nutrimind/internal/history"
	"nutrimind/internal/model"
	"nutrimind/internal/transfer"
	"nutrimind/internal/typing"
)

type State string

const (
	StateEmpty         State = "empty"
	StateSeeding       State = "seeding"
	StateReady         State = "ready"
	StateAwaitingReply State = "awaiting_reply"
)

// 各失败路径的固定提示文案，以普通助手消息的形式进入时间线
const (
	noContextText  = "No analysis context yet. Please upload a food label image first."
	backendErrText = "Error contacting backend. Please try again."
	noAnswerText   = "The service did not return an answer. Please try again."
)

// Backend 控制器依赖的两个外部调用
type Backend interface {
	Analyze(ctx context.Context, filename string, image []byte) (*model.AnalyzeResponse, error)
	Chat(ctx context.Context, analysisID, question string, history []model.QAPair) (*model.ChatResponse, error)
}

// Controller 会话控制器。时间线只增不减，唯一的原地修改路径
// 是打字动画对占位消息的内容替换。
type Controller struct {
	mu       sync.Mutex
	backend  Backend
	animator *typing.Animator
	store    *transfer.Store

	state      State
	analysisID string
	title      string
	timeline   []model.Message
	nextSeq    int
	listener   func()
}

func NewController(backend Backend, animator *typing.Animator, store *transfer.Store) *Controller {
	return &Controller{
		backend:  backend,
		animator: animator,
		store:    store,
		state:    StateEmpty,
	}
}

// SetListener 注册时间线或状态变化后的通知回调（渲染层刷新用）
func (c *Controller) SetListener(fn func()) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Mount 挂载时恢复上传页留下的交接载荷。载荷只会被消费一次；
// 没有可用图片时保持 Empty。
func (c *Controller) Mount() {
	t, ok := c.store.Load()
	if !ok || !t.HasImage() {
		return
	}

	c.mu.Lock()
	c.appendLocked(model.NewImageMessage(model.RoleUser, &model.ImageRef{URL: t.ImageData}, 0))
	if t.AnalysisID != "" {
		c.analysisID = t.AnalysisID
	}

	// 缺失的分析字段按"不存在"处理，只播种图片消息
	content := t.Summary
	if content == "" {
		content = t.Analysis
	}
	if content == "" {
		c.state = StateReady
		c.mu.Unlock()
		c.notify()
		return
	}

	placeholder := c.appendLocked(model.NewStructuredMessage(model.RoleAssistant, "", 0))
	c.state = StateSeeding
	c.mu.Unlock()
	c.notify()

	c.animate(placeholder.ID, content)
}

// Upload 处理一次图片上传：先落图片消息，再调用分析接口。
// 失败时以普通助手消息报告原因，analysisID 保持未设置。
func (c *Controller) Upload(ctx context.Context, filename string, image []byte) {
	c.mu.Lock()
	if c.animator.Active() || (c.state != StateEmpty && !(c.state == StateReady && c.analysisID == "")) {
		c.mu.Unlock()
		return
	}
	c.appendLocked(model.NewImageMessage(model.RoleUser, &model.ImageRef{Data: image}, 0))
	c.state = StateAwaitingReply
	c.mu.Unlock()
	c.notify()

	resp, err := c.backend.Analyze(ctx, filename, image)

	c.mu.Lock()
	if err != nil {
		c.appendLocked(model.NewTextMessage(model.RoleAssistant, "Error analyzing image: "+err.Error(), 0))
		c.state = StateEmpty
		c.mu.Unlock()
		c.notify()
		return
	}

	c.analysisID = resp.AnalysisID

	// 优先用 analysis 字段，缺失时退回整个响应的结构化输出
	content := resp.AnalysisText()
	if content == "" {
		content = resp.Dump()
	}

	placeholder := c.appendLocked(model.NewStructuredMessage(model.RoleAssistant, "", 0))
	c.state = StateReady
	c.mu.Unlock()
	c.notify()

	c.animate(placeholder.ID, content)
}

// Ask 处理一次追问。空白输入和回复进行中的提交都是 no-op；
// 没有分析上下文时本地拒绝，不发网络请求。
func (c *Controller) Ask(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.state == StateAwaitingReply || c.state == StateSeeding || c.animator.Active() {
		c.mu.Unlock()
		return
	}

	// 上下文基于提交前的时间线重建，不包含本次提问
	hist := history.Reconstruct(c.timeline)

	c.appendLocked(model.NewTextMessage(model.RoleUser, text, 0))
	c.state = StateAwaitingReply

	if c.analysisID == "" {
		c.appendLocked(model.NewTextMessage(model.RoleAssistant, noContextText, 0))
		c.state = StateReady
		c.mu.Unlock()
		c.notify()
		return
	}

	analysisID := c.analysisID
	c.mu.Unlock()
	c.notify()

	resp, err := c.backend.Chat(ctx, analysisID, text, hist)

	c.mu.Lock()
	if err != nil {
		c.appendLocked(model.NewTextMessage(model.RoleAssistant, backendErrText, 0))
		c.state = StateReady
		c.mu.Unlock()
		c.notify()
		return
	}

	if resp.Answer != "" {
		placeholder := c.appendLocked(model.NewStructuredMessage(model.RoleAssistant, "", 0))
		c.state = StateReady
		c.mu.Unlock()
		c.notify()
		c.animate(placeholder.ID, resp.Answer)
		return
	}

	// 无答案：错误文案原样展示，不做动画
	text = resp.Error
	if text == "" {
		text = noAnswerText
	}
	c.appendLocked(model.NewTextMessage(model.RoleAssistant, text, 0))
	c.state = StateReady
	c.mu.Unlock()
	c.notify()
}

// Resume 从服务端存储的会话恢复时间线。
// timestamp 归一化为插入顺序，其余字段原样透传。
func (c *Controller) Resume(detail *model.SessionDetail) {
	c.mu.Lock()

	msgs := make([]model.StoredMessage, len(detail.Messages))
	copy(msgs, detail.Messages)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	c.timeline = c.timeline[:0]
	c.nextSeq = 0
	for _, m := range msgs {
		role := model.Role(m.Role)
		var msg model.Message
		if m.ImageURL != "" {
			msg = model.NewImageMessage(role, &model.ImageRef{URL: m.ImageURL}, 0)
		} else if role == model.RoleAssistant {
			msg = model.NewStructuredMessage(role, m.Content, 0)
		} else {
			msg = model.NewTextMessage(role, m.Content, 0)
		}
		if m.ID != "" {
			msg.ID = m.ID
		}
		c.appendLocked(msg)
	}

	c.analysisID = detail.ChatID
	c.title = detail.Title
	c.state = StateReady
	c.mu.Unlock()
	c.notify()
}

// Close 在界面拆除时调用，挂起动画的后续 tick 不再写入时间线
func (c *Controller) Close() {
	c.animator.Stop()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) AnalysisID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysisID
}

func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// Timeline 返回时间线快照
func (c *Controller) Timeline() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// AnimatingID 当前动画目标消息的 ID，渲染层据此显示光标
func (c *Controller) AnimatingID() string {
	return c.animator.TargetID()
}

func (c *Controller) appendLocked(msg model.Message) model.Message {
	msg.Sequence = c.nextSeq
	c.nextSeq++
	c.timeline = append(c.timeline, msg)
	return msg
}

func (c *Controller) animate(messageID, full string) {
	err := c.animator.Start(messageID, full, c.setContent, func(string) {
		c.mu.Lock()
		if c.state == StateSeeding {
			c.state = StateReady
		}
		c.mu.Unlock()
		c.notify()
	})
	if err != nil {
		// 动画起不来时直接落定全文，占位消息不能以空内容收场
		c.setContent(messageID, full)
		c.mu.Lock()
		if c.state == StateSeeding {
			c.state = StateReady
		}
		c.mu.Unlock()
		c.notify()
	}
}

// setContent 打字动画唯一允许的内容替换路径：同一条消息、同一个序号
func (c *Controller) setContent(messageID, content string) {
	c.mu.Lock()
	for i := range c.timeline {
		if c.timeline[i].ID == messageID {
			c.timeline[i].Content = content
			break
		}
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.listener
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
