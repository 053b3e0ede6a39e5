package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind/internal/model"
	"nutrimind/internal/transfer"
	"nutrimind/internal/typing"
)

type manualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *manualScheduler) Schedule(_ time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

func (s *manualScheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

type fakeBackend struct {
	analyzeResp *model.AnalyzeResponse
	analyzeErr  error
	chatResp    *model.ChatResponse
	chatErr     error

	analyzeCalls int
	chatCalls    int
	lastHistory  []model.QAPair
	lastQuestion string
}

func (f *fakeBackend) Analyze(_ context.Context, _ string, _ []byte) (*model.AnalyzeResponse, error) {
	f.analyzeCalls++
	return f.analyzeResp, f.analyzeErr
}

func (f *fakeBackend) Chat(_ context.Context, _ string, question string, hist []model.QAPair) (*model.ChatResponse, error) {
	f.chatCalls++
	f.lastQuestion = question
	f.lastHistory = hist
	return f.chatResp, f.chatErr
}

func newTestController(backend *fakeBackend) (*Controller, *manualScheduler, *transfer.Store) {
	sched := &manualScheduler{}
	store := transfer.NewStore()
	ctrl := NewController(backend, typing.New(time.Millisecond, sched), store)
	return ctrl, sched, store
}

func TestUploadSeedsTimeline(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{
			AnalysisID: "abc",
			Analysis:   "Sodium is high. Eat in moderation.",
		},
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{0x89, 0x50})
	sched.drain()

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 2)

	assert.Equal(t, model.RoleUser, timeline[0].Role)
	assert.Equal(t, model.ContentImage, timeline[0].ContentType)
	require.NotNil(t, timeline[0].Image)
	assert.Equal(t, []byte{0x89, 0x50}, timeline[0].Image.Data)

	assert.Equal(t, model.RoleAssistant, timeline[1].Role)
	assert.Equal(t, model.ContentStructured, timeline[1].ContentType)
	assert.Equal(t, "Sodium is high. Eat in moderation.", timeline[1].Content)

	assert.Equal(t, "abc", ctrl.AnalysisID())
	assert.Equal(t, StateReady, ctrl.State())
	assert.Equal(t, []int{0, 1}, []int{timeline[0].Sequence, timeline[1].Sequence})
}

func TestUploadFailureReportsAndAllowsRetry(t *testing.T) {
	backend := &fakeBackend{analyzeErr: errors.New("image too large")}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, "Error analyzing image: image too large", timeline[1].Content)
	assert.Equal(t, StateEmpty, ctrl.State())
	assert.Empty(t, ctrl.AnalysisID())

	// 失败后允许重传
	backend.analyzeErr = nil
	backend.analyzeResp = &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "ok"}
	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()

	assert.Equal(t, "abc", ctrl.AnalysisID())
	assert.Equal(t, StateReady, ctrl.State())
}

func TestAskWithoutContextIsLocal(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, _, _ := newTestController(backend)

	ctrl.Ask(context.Background(), "Is this healthy?")

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, "Is this healthy?", timeline[0].Content)
	assert.Equal(t, noContextText, timeline[1].Content)
	assert.Equal(t, 0, backend.chatCalls, "无上下文的追问不应发起网络请求")
	assert.Equal(t, StateReady, ctrl.State())
}

func TestAskAnimatesAnswer(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "Sodium is high."},
		chatResp:    &model.ChatResponse{Answer: "Yes"},
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()

	ctrl.Ask(context.Background(), "Is this healthy?")
	assert.NotEmpty(t, ctrl.AnimatingID(), "回答应以动画形式揭示")
	sched.drain()

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 4)
	assert.Equal(t, "Yes", timeline[3].Content)
	assert.Empty(t, ctrl.AnimatingID())
	assert.Equal(t, StateReady, ctrl.State())

	// 上下文基于提交前的时间线重建，本次提问不在其中
	assert.Equal(t, "Is this healthy?", backend.lastQuestion)
	assert.Empty(t, backend.lastHistory)
}

func TestAskHistoryPairsEarlierTurns(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "Sodium is high."},
		chatResp:    &model.ChatResponse{Answer: "Yes"},
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()
	ctrl.Ask(context.Background(), "Is this healthy?")
	sched.drain()

	backend.chatResp = &model.ChatResponse{Answer: "Some"}
	ctrl.Ask(context.Background(), "What about sugar?")
	sched.drain()

	require.Len(t, backend.lastHistory, 1)
	assert.Equal(t, "Is this healthy?", backend.lastHistory[0].Question)
}

func TestAskEmptyAnswerFallsBack(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "Sodium is high."},
		chatResp:    &model.ChatResponse{},
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()

	ctrl.Ask(context.Background(), "Is this healthy?")

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 4)
	// 兜底文案直接全文落地，不做动画
	assert.Equal(t, noAnswerText, timeline[3].Content)
	assert.Empty(t, ctrl.AnimatingID())
	assert.Equal(t, StateReady, ctrl.State())
}

func TestAskBackendErrorText(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "Sodium is high."},
		chatErr:     errors.New("connection refused"),
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()

	ctrl.Ask(context.Background(), "Is this healthy?")

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 4)
	assert.Equal(t, backendErrText, timeline[3].Content)
	assert.Equal(t, StateReady, ctrl.State())
}

func TestAskErrorFieldPassesThrough(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "Sodium is high."},
		chatResp:    &model.ChatResponse{Error: "Analysis not found"},
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()

	ctrl.Ask(context.Background(), "Is this healthy?")

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 4)
	assert.Equal(t, "Analysis not found", timeline[3].Content)
}

func TestAskIgnoredWhileAnimating(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "Sodium is high."},
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	require.NotEmpty(t, ctrl.AnimatingID())

	ctrl.Ask(context.Background(), "Is this healthy?")
	assert.Len(t, ctrl.Timeline(), 2, "动画期间的提交应为 no-op")
	assert.Equal(t, 0, backend.chatCalls)

	sched.drain()
}

func TestAskBlankIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, _, _ := newTestController(backend)

	ctrl.Ask(context.Background(), "   ")
	assert.Empty(t, ctrl.Timeline())
}

func TestMountConsumesTransfer(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, sched, store := newTestController(backend)

	store.Save(transfer.PendingTransfer{
		ImageData:  "data:image/png;base64,AAAA",
		Summary:    "Sodium is high.",
		Analysis:   `{"recommendation":"MODERATE"}`,
		AnalysisID: "abc",
	})

	ctrl.Mount()
	sched.drain()

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, model.ContentImage, timeline[0].ContentType)
	assert.Equal(t, "data:image/png;base64,AAAA", timeline[0].Image.URL)
	assert.Equal(t, "Sodium is high.", timeline[1].Content)
	assert.Equal(t, "abc", ctrl.AnalysisID())
	assert.Equal(t, StateReady, ctrl.State())

	_, ok := store.Load()
	assert.False(t, ok, "交接载荷只能被消费一次")
}

func TestMountWithoutImageStaysEmpty(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, _, store := newTestController(backend)

	store.Save(transfer.PendingTransfer{Summary: "orphan summary"})
	ctrl.Mount()

	assert.Empty(t, ctrl.Timeline())
	assert.Equal(t, StateEmpty, ctrl.State())
}

func TestMountImageOnly(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, sched, store := newTestController(backend)

	store.Save(transfer.PendingTransfer{ImageData: "data:image/png;base64,AAAA"})
	ctrl.Mount()
	sched.drain()

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 1)
	assert.Equal(t, model.ContentImage, timeline[0].ContentType)
	assert.Equal(t, StateReady, ctrl.State())
	assert.Empty(t, ctrl.AnalysisID())
}

func TestResumeOrdersByTimestamp(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, _, _ := newTestController(backend)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctrl.Resume(&model.SessionDetail{
		ChatID: "abc",
		Title:  "Sodium is high.",
		Messages: []model.StoredMessage{
			{ID: "m3", Role: "assistant", Content: "a1", Timestamp: base.Add(2 * time.Minute)},
			{ID: "m1", Role: "user", ImageURL: "/media/food_label_abc.jpg", Timestamp: base},
			{ID: "m2", Role: "assistant", Content: "analysis", Timestamp: base.Add(time.Minute)},
		},
	})

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{timeline[0].ID, timeline[1].ID, timeline[2].ID})
	assert.Equal(t, model.ContentImage, timeline[0].ContentType)
	assert.Equal(t, "abc", ctrl.AnalysisID())
	assert.Equal(t, "Sodium is high.", ctrl.Title())
	assert.Equal(t, StateReady, ctrl.State())
}

func TestCloseStopsAnimation(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "Sodium is high."},
	}
	ctrl, sched, _ := newTestController(backend)

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	ctrl.Close()
	sched.drain()

	timeline := ctrl.Timeline()
	require.Len(t, timeline, 2)
	assert.Empty(t, timeline[1].Content, "拆除后挂起的 tick 不应再写入时间线")
}

func TestListenerNotified(t *testing.T) {
	backend := &fakeBackend{
		analyzeResp: &model.AnalyzeResponse{AnalysisID: "abc", Analysis: "hi"},
	}
	ctrl, sched, _ := newTestController(backend)

	var mu sync.Mutex
	calls := 0
	ctrl.SetListener(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	ctrl.Upload(context.Background(), "label.jpg", []byte{1})
	sched.drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, calls, 0)
}
