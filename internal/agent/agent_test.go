package agent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store"
)

// fakeStore implements only the Conversations/Messages slice of store.Store
// that ConversationService needs; every other surface panics, since no
// agent test exercises it.
type fakeStore struct {
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: map[string]*model.Conversation{}, messages: map[string][]*model.Message{}}
}

func (f *fakeStore) Users() store.Users                     { panic("unused") }
func (f *fakeStore) Tasks() store.Tasks                      { panic("unused") }
func (f *fakeStore) Tags() store.Tags                        { panic("unused") }
func (f *fakeStore) ProcessedEvents() store.ProcessedEvents { panic("unused") }
func (f *fakeStore) Outbox() store.Outbox                    { panic("unused") }
func (f *fakeStore) Conversations() store.Conversations      { return &fakeConversations{f} }
func (f *fakeStore) Messages() store.Messages                { return &fakeMessages{f} }

type fakeConversations struct{ p *fakeStore }

func (c *fakeConversations) Create(_ context.Context, conv *model.Conversation) (*model.Conversation, error) {
	c.p.conversations[conv.ConversationID] = conv
	return conv, nil
}
func (c *fakeConversations) GetByID(_ context.Context, ownerID, conversationID string) (*model.Conversation, error) {
	conv, ok := c.p.conversations[conversationID]
	if !ok || conv.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	return conv, nil
}
func (c *fakeConversations) List(_ context.Context, ownerID string) ([]*model.Conversation, error) {
	var out []*model.Conversation
	for _, conv := range c.p.conversations {
		if conv.OwnerID == ownerID {
			out = append(out, conv)
		}
	}
	return out, nil
}
func (c *fakeConversations) SetTitle(_ context.Context, ownerID, conversationID, title string) error {
	conv, ok := c.p.conversations[conversationID]
	if !ok || conv.OwnerID != ownerID {
		return model.ErrNotFound
	}
	conv.Title = &title
	return nil
}

type fakeMessages struct{ p *fakeStore }

func (m *fakeMessages) Append(_ context.Context, msg *model.Message) (*model.Message, error) {
	m.p.messages[msg.ConversationID] = append(m.p.messages[msg.ConversationID], msg)
	return msg, nil
}
func (m *fakeMessages) List(_ context.Context, conversationID string) ([]*model.Message, error) {
	return m.p.messages[conversationID], nil
}

// fakeLLM is a scripted LLMClient: it returns the next entry in plans on
// each call, or the last entry once exhausted.
type fakeLLM struct {
	plans   []PlanResult
	calls   int
	history [][]model.Message
}

func (f *fakeLLM) Plan(ctx context.Context, history []model.Message, tools []mcp.Tool) (PlanResult, error) {
	f.history = append(f.history, history)
	idx := f.calls
	if idx >= len(f.plans) {
		idx = len(f.plans) - 1
	}
	f.calls++
	return f.plans[idx], nil
}

func newConversation(t *testing.T, fs *fakeStore, ownerID string) string {
	convID := uuid.NewString()
	_, err := fs.Conversations().Create(context.Background(), &model.Conversation{
		ConversationID: convID,
		OwnerID:        ownerID,
		CreationTime:   time.Now().UTC(),
		UpdateTime:     time.Now().UTC(),
	})
	require.NoError(t, err)
	return convID
}

func TestHandleTurn_NoToolCallsCommitsUserAndAssistantMessages(t *testing.T) {
	fs := newFakeStore()
	convID := newConversation(t, fs, "u1")
	convs := taskcore.NewConversationService(fs)
	registry := NewRegistry(newFakeTaskCore())
	llm := &fakeLLM{plans: []PlanResult{{FinalMessage: "Sure, noted."}}}

	a := New(convs, registry, llm, zerolog.Nop())
	reply, err := a.HandleTurn(context.Background(), "u1", convID, "just chatting")
	require.NoError(t, err)
	require.Equal(t, "Sure, noted.", reply.Content)
	require.Equal(t, model.RoleAssistant, reply.Role)

	persisted := fs.messages[convID]
	require.Len(t, persisted, 2)
	require.Equal(t, model.RoleUser, persisted[0].Role)
	require.Equal(t, "just chatting", persisted[0].Content)
	require.Equal(t, model.RoleAssistant, persisted[1].Role)
	require.Equal(t, "Sure, noted.", persisted[1].Content)
}

func TestHandleTurn_DispatchesToolCallThenRepliesOnNoMoreCalls(t *testing.T) {
	fs := newFakeStore()
	convID := newConversation(t, fs, "u1")
	convs := taskcore.NewConversationService(fs)
	tc := newFakeTaskCore()
	registry := NewRegistry(tc)
	llm := &fakeLLM{plans: []PlanResult{
		{ToolCalls: []ToolCall{{Name: "add_task", Arguments: map[string]any{"title": "buy milk"}}}},
		{FinalMessage: "Added buy milk."},
	}}

	a := New(convs, registry, llm, zerolog.Nop())
	reply, err := a.HandleTurn(context.Background(), "u1", convID, "add buy milk")
	require.NoError(t, err)
	require.Equal(t, "Added buy milk.", reply.Content)
	require.Equal(t, "buy milk", tc.lastCreate.Title)

	// Only the user message and the final assistant message are persisted;
	// the intermediate tool call/result lives only in the in-memory transcript.
	require.Len(t, fs.messages[convID], 2)
	require.Len(t, llm.history[1], 2) // user msg + synthetic tool-trace entry, fed to the second Plan call
}

func TestHandleTurn_RejectsToolOutsideRegistryWithoutFailingTheTurn(t *testing.T) {
	fs := newFakeStore()
	convID := newConversation(t, fs, "u1")
	convs := taskcore.NewConversationService(fs)
	registry := NewRegistry(newFakeTaskCore())
	llm := &fakeLLM{plans: []PlanResult{
		{ToolCalls: []ToolCall{{Name: "drop_all_tasks", Arguments: nil}}},
		{FinalMessage: "I can't do that."},
	}}

	a := New(convs, registry, llm, zerolog.Nop())
	reply, err := a.HandleTurn(context.Background(), "u1", convID, "drop everything")
	require.NoError(t, err)
	require.Equal(t, "I can't do that.", reply.Content)

	secondTurn := llm.history[1]
	last := secondTurn[len(secondTurn)-1]
	require.Equal(t, model.RoleAssistant, last.Role)
	require.Contains(t, last.Content, "not in the permitted tool surface")
}

func TestHandleTurn_BoundedIterationsProducesFallbackReply(t *testing.T) {
	fs := newFakeStore()
	convID := newConversation(t, fs, "u1")
	convs := taskcore.NewConversationService(fs)
	registry := NewRegistry(newFakeTaskCore())
	llm := &fakeLLM{plans: []PlanResult{
		{ToolCalls: []ToolCall{{Name: "list_tasks"}}},
	}}

	a := New(convs, registry, llm, zerolog.Nop()).WithMaxIterations(2)
	reply, err := a.HandleTurn(context.Background(), "u1", convID, "keep going forever")
	require.NoError(t, err)
	require.Contains(t, reply.Content, "couldn't complete that request")
	require.Equal(t, 2, llm.calls)
}

func TestHandleTurn_SetsConversationTitleFromFirstMessageOnlyOnce(t *testing.T) {
	fs := newFakeStore()
	convID := newConversation(t, fs, "u1")
	convs := taskcore.NewConversationService(fs)
	registry := NewRegistry(newFakeTaskCore())
	llm := &fakeLLM{plans: []PlanResult{{FinalMessage: "ok"}}}

	a := New(convs, registry, llm, zerolog.Nop())
	_, err := a.HandleTurn(context.Background(), "u1", convID, "remind me to call mom tomorrow")
	require.NoError(t, err)
	require.NotNil(t, fs.conversations[convID].Title)
	firstTitle := *fs.conversations[convID].Title

	llm2 := &fakeLLM{plans: []PlanResult{{FinalMessage: "ok again"}}}
	a2 := New(convs, registry, llm2, zerolog.Nop())
	_, err = a2.HandleTurn(context.Background(), "u1", convID, "a completely different message")
	require.NoError(t, err)
	require.Equal(t, firstTitle, *fs.conversations[convID].Title)
}
