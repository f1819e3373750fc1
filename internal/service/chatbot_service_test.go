package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/repository/memory"
	"biblo-chat-be/pkg/llm"
	"biblo-chat-be/pkg/rag/prompt"
	"biblo-chat-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	domain store.Domain
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, p string) (store.Domain, error) {
	return f.domain, f.err
}

type fakeRetriever struct {
	context string
	err     error
	calls   int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, domain store.Domain) (string, error) {
	f.calls++
	return f.context, f.err
}

// scriptedLLM replays fixed events and records the prompt it was given.
type scriptedLLM struct {
	mu       sync.Mutex
	events   []llm.StreamEvent
	messages []llm.Message
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return llm.Collect(s.Stream(ctx, history, opts...))
}

func (s *scriptedLLM) Generate(ctx context.Context, p string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: p}}, opts...)
}

func (s *scriptedLLM) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) <-chan llm.StreamEvent {
	s.mu.Lock()
	s.messages = history
	s.mu.Unlock()

	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)
		em := llm.NewEmitter(ctx, out)
		for _, ev := range s.events {
			if !em.Send(ev) {
				return
			}
		}
	}()
	return out
}

type frameRecorder struct {
	frames  []dto.StreamFrame
	failOn  string
	failErr error
}

func (r *frameRecorder) emit(f dto.StreamFrame) error {
	r.frames = append(r.frames, f)
	if r.failOn != "" && f.Type == r.failOn {
		return r.failErr
	}
	return nil
}

func (r *frameRecorder) types() []string {
	out := make([]string, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Type
	}
	return out
}

type chatFixture struct {
	repo      *memory.SessionRepository
	cls       *fakeClassifier
	retriever *fakeRetriever
	model     *scriptedLLM
	svc       *chatbotService
}

func newChatFixture(events ...llm.StreamEvent) *chatFixture {
	f := &chatFixture{
		repo:      memory.NewSessionRepository(memory.SessionRepositoryConfig{}),
		cls:       &fakeClassifier{domain: store.DomainLibrary},
		retriever: &fakeRetriever{context: "핵심정보: 운영시간 \n평일 09-18시"},
		model:     &scriptedLLM{events: events},
	}
	f.svc = NewChatbotService(f.repo, f.cls, f.retriever, f.model, prompt.NewBuilder(), logger.NewNopLogger()).(*chatbotService)
	return f
}

func TestStreamTurn_NewSessionSuccess(t *testing.T) {
	f := newChatFixture(llm.Fragment("평일 "), llm.Fragment("09-18시"), llm.Done())
	rec := &frameRecorder{}

	res, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "도서관 운영시간?"}, rec.emit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		dto.FrameSessionInfo,
		dto.FrameUserMessageSaved,
		dto.FrameMessageStart,
		dto.FrameToken,
		dto.FrameToken,
		dto.FrameMessageEnd,
	}, rec.types())

	session, ok := f.repo.Get(res.SessionID)
	require.True(t, ok)
	assert.Equal(t, store.DomainLibrary, session.Domain())

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "도서관 운영시간?", msgs[0].Content)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "평일 09-18시", msgs[1].Content)

	// message_start announced the id that was finally stored
	assert.Equal(t, rec.frames[2].MessageID, msgs[1].ID)
	assert.Equal(t, rec.frames[1].MessageID, msgs[0].ID)

	end := rec.frames[5]
	assert.Equal(t, "평일 09-18시", end.FullResponse)
	assert.Len(t, end.ConversationHistory, 2)

	// history sent to the model already contains the current prompt
	require.Len(t, f.model.messages, 1)
	assert.Contains(t, f.model.messages[0].Content, "👤 사용자: 도서관 운영시간?")
	assert.Contains(t, f.model.messages[0].Content, "평일 09-18시")
}

func TestStreamTurn_ExistingSessionSwitchesDomain(t *testing.T) {
	f := newChatFixture(llm.Fragment("ok"), llm.Done())
	existing := f.repo.Create(store.DomainLibrary, store.ClientMeta{})
	f.cls.domain = store.DomainCompany
	rec := &frameRecorder{}

	res, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "회사 소개", SessionID: existing.ID()}, rec.emit)
	require.NoError(t, err)

	assert.Equal(t, existing.ID(), res.SessionID)
	assert.NotContains(t, rec.types(), dto.FrameSessionInfo)
	assert.Equal(t, store.DomainCompany, existing.Domain())
	assert.Equal(t, 1, f.repo.Count())
}

func TestStreamTurn_UnknownSessionIDCreatesNew(t *testing.T) {
	f := newChatFixture(llm.Done())
	rec := &frameRecorder{}

	res, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "hi", SessionID: "gone"}, rec.emit)
	require.NoError(t, err)

	assert.NotEqual(t, "gone", res.SessionID)
	assert.Equal(t, dto.FrameSessionInfo, rec.frames[0].Type)
	assert.True(t, rec.frames[0].IsNewSession)
}

func TestStreamTurn_Failures(t *testing.T) {
	t.Run("empty prompt", func(t *testing.T) {
		f := newChatFixture()
		rec := &frameRecorder{}

		_, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "  "}, rec.emit)
		assert.ErrorIs(t, err, ErrNoPrompt)
		require.Len(t, rec.frames, 1)
		assert.Equal(t, dto.ErrCodeNoPrompt, rec.frames[0].Code)
		assert.Equal(t, 0, f.repo.Count())
	})

	t.Run("classification failure creates nothing", func(t *testing.T) {
		f := newChatFixture()
		f.cls.err = errors.New("model loading")
		rec := &frameRecorder{}

		_, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "hi"}, rec.emit)
		assert.Error(t, err)
		require.Len(t, rec.frames, 1)
		assert.Equal(t, dto.FrameError, rec.frames[0].Type)
		assert.Equal(t, dto.ErrCodeClassificationFailed, rec.frames[0].Code)
		assert.Equal(t, 0, f.repo.Count())
	})

	t.Run("retrieval failure degrades to empty context", func(t *testing.T) {
		f := newChatFixture(llm.Fragment("answer"), llm.Done())
		f.retriever.err = errors.New("pgvector down")
		rec := &frameRecorder{}

		res, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "hi"}, rec.emit)
		require.NoError(t, err)
		session, _ := f.repo.Get(res.SessionID)
		assert.Equal(t, 2, session.MessageCount())
	})

	t.Run("generation error keeps user message only", func(t *testing.T) {
		f := newChatFixture(llm.Fragment("partial"), llm.Failed(errors.New("rate limited")))
		rec := &frameRecorder{}

		res, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "hi"}, rec.emit)
		assert.ErrorContains(t, err, "rate limited")

		last := rec.frames[len(rec.frames)-1]
		assert.Equal(t, dto.FrameError, last.Type)
		assert.Equal(t, dto.ErrCodeGenerationFailed, last.Code)
		assert.NotContains(t, rec.types(), dto.FrameMessageEnd)

		session, _ := f.repo.Get(res.SessionID)
		msgs := session.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, store.RoleUser, msgs[0].Role)

		// the announced id was never stored, so feedback on it is rejected
		ok, err := session.RecordFeedback(res.AssistantMessageID, store.FeedbackLike)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("client gone mid stream discards partial content", func(t *testing.T) {
		f := newChatFixture(llm.Fragment("a"), llm.Fragment("b"), llm.Done())
		rec := &frameRecorder{failOn: dto.FrameToken, failErr: errors.New("broken pipe")}

		res, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "hi"}, rec.emit)
		assert.ErrorContains(t, err, "broken pipe")

		session, _ := f.repo.Get(res.SessionID)
		assert.Equal(t, 1, session.MessageCount())
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newChatFixture(llm.Fragment("a"), llm.Done())
		ctx, cancel := context.WithCancel(context.Background())
		rec := &frameRecorder{}
		emit := func(fr dto.StreamFrame) error {
			if fr.Type == dto.FrameMessageStart {
				cancel()
			}
			return rec.emit(fr)
		}

		res, err := f.svc.StreamTurn(ctx, TurnRequest{Prompt: "hi"}, emit)
		assert.ErrorIs(t, err, context.Canceled)

		session, _ := f.repo.Get(res.SessionID)
		assert.Equal(t, 1, session.MessageCount())
		assert.NotContains(t, rec.types(), dto.FrameMessageEnd)
	})

	t.Run("ended session rejects the turn", func(t *testing.T) {
		f := newChatFixture(llm.Done())
		s := f.repo.Create(store.DomainCompany, store.ClientMeta{})
		s.End()
		rec := &frameRecorder{}

		_, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "hi", SessionID: s.ID()}, rec.emit)
		assert.ErrorIs(t, err, store.ErrSessionEnded)
		assert.Equal(t, dto.ErrCodeSessionEnded, rec.frames[len(rec.frames)-1].Code)
	})

	t.Run("session ended while generating", func(t *testing.T) {
		f := newChatFixture(llm.Fragment("answer"), llm.Done())
		s := f.repo.Create(store.DomainLibrary, store.ClientMeta{})
		rec := &frameRecorder{}
		emit := func(fr dto.StreamFrame) error {
			if fr.Type == dto.FrameToken {
				_, _ = f.repo.Delete(s.ID())
			}
			return rec.emit(fr)
		}

		_, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "hi", SessionID: s.ID()}, emit)
		assert.ErrorIs(t, err, store.ErrSessionEnded)

		last := rec.frames[len(rec.frames)-1]
		assert.Equal(t, dto.FrameError, last.Type)
		assert.Equal(t, dto.ErrCodeSessionEnded, last.Code)
		assert.NotContains(t, rec.types(), dto.FrameMessageEnd)
		assert.Equal(t, 1, s.MessageCount())
	})
}

func TestStreamTurn_SerializesTurnsOnOneSession(t *testing.T) {
	f := newChatFixture(llm.Fragment("x"), llm.Done())
	s := f.repo.Create(store.DomainLibrary, store.ClientMeta{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &frameRecorder{}
			_, err := f.svc.StreamTurn(context.Background(), TurnRequest{Prompt: "q", SessionID: s.ID()}, rec.emit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 10)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, store.RoleUser, msgs[i].Role)
		assert.Equal(t, store.RoleAssistant, msgs[i+1].Role)
	}
}
