package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"legalchat/internal/model"
)

// memoryPersister is an in-memory Persister for exercising the store without
// a database.
type memoryPersister struct {
	convs    map[string]model.Conversation
	messages map[string][]model.Message
	loadErr  error
	failNext error
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{
		convs:    make(map[string]model.Conversation),
		messages: make(map[string][]model.Message),
	}
}

func (p *memoryPersister) takeFailure() error {
	err := p.failNext
	p.failNext = nil
	return err
}

func (p *memoryPersister) Load() ([]model.Conversation, map[string][]model.Message, error) {
	if p.loadErr != nil {
		return nil, nil, p.loadErr
	}
	out := make([]model.Conversation, 0, len(p.convs))
	for _, c := range p.convs {
		out = append(out, c)
	}
	return out, p.messages, nil
}

func (p *memoryPersister) CreateConversation(conv *model.Conversation) error {
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.convs[conv.ID] = *conv
	return nil
}

func (p *memoryPersister) SaveConversation(conv *model.Conversation) error {
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.convs[conv.ID] = *conv
	return nil
}

func (p *memoryPersister) AppendMessage(conv *model.Conversation, msg *model.Message) error {
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.convs[conv.ID] = *conv
	p.messages[conv.ID] = append(p.messages[conv.ID], *msg)
	return nil
}

func (p *memoryPersister) UpdateTitleIfGeneration(id, title string, expected int) (bool, error) {
	if err := p.takeFailure(); err != nil {
		return false, err
	}
	conv, ok := p.convs[id]
	if !ok || conv.TitleGeneration != expected {
		return false, nil
	}
	conv.Title = title
	conv.TitleGeneration = expected + 1
	p.convs[id] = conv
	return true, nil
}

func (p *memoryPersister) DeleteConversation(id string) error {
	if err := p.takeFailure(); err != nil {
		return err
	}
	delete(p.convs, id)
	delete(p.messages, id)
	return nil
}

func (p *memoryPersister) RestoreConversation(conv *model.Conversation, messages []model.Message) error {
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.convs[conv.ID] = *conv
	p.messages[conv.ID] = messages
	return nil
}

func (p *memoryPersister) Clear() error {
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.convs = make(map[string]model.Conversation)
	p.messages = make(map[string][]model.Message)
	return nil
}

func newTestStore(t *testing.T) (*ConversationStore, *memoryPersister) {
	t.Helper()
	persister := newMemoryPersister()
	return New(persister, nil), persister
}

func TestCreateConversationIsEmptyAndValid(t *testing.T) {
	s, _ := newTestStore(t)

	conv, err := s.CreateConversation()
	require.NoError(t, err)
	require.Equal(t, "Nueva consulta", conv.Title)

	msgs, err := s.Messages(conv.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestListOrdersByMostRecentUpdate(t *testing.T) {
	s, _ := newTestStore(t)

	older, err := s.CreateConversation()
	require.NoError(t, err)
	newer, err := s.CreateConversation()
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)

	// Touching the older conversation moves it to the front.
	_, _, _, err = s.AppendUserMessage(older.ID, "hola", nil)
	require.NoError(t, err)
	list = s.List()
	require.Equal(t, older.ID, list[0].ID)
}

func TestFirstMessageDerivesHeuristicTitle(t *testing.T) {
	s, _ := newTestStore(t)
	conv, err := s.CreateConversation()
	require.NoError(t, err)

	_, first, generation, err := s.AppendUserMessage(conv.ID, "¿Puedo reclamar la fianza de mi alquiler?", nil)
	require.NoError(t, err)
	require.True(t, first)
	require.Zero(t, generation)

	list := s.List()
	require.Equal(t, "¿Puedo reclamar la fianza de mi alquiler?", list[0].Title)

	_, second, _, err := s.AppendUserMessage(conv.ID, "otra pregunta", nil)
	require.NoError(t, err)
	require.False(t, second)
	require.Equal(t, "¿Puedo reclamar la fianza de mi alquiler?", s.List()[0].Title)
}

func TestHeuristicTitleTruncatesAtWordBoundary(t *testing.T) {
	long := strings.Repeat("palabra ", 20)
	title := heuristicTitle(long)
	require.LessOrEqual(t, len([]rune(title)), heuristicTitleLen+1)
	require.True(t, strings.HasSuffix(title, "…"))
	require.False(t, strings.HasSuffix(strings.TrimSuffix(title, "…"), "palabr"), "no mid-word cut")
}

func TestHeuristicTitleCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "hola mundo", heuristicTitle("  hola \n\t mundo  "))
	require.Equal(t, "Nueva consulta", heuristicTitle("   "))
}

func TestApplyGeneratedTitleWinsWhenGenerationMatches(t *testing.T) {
	s, _ := newTestStore(t)
	conv, err := s.CreateConversation()
	require.NoError(t, err)

	_, _, generation, err := s.AppendUserMessage(conv.ID, "consulta sobre despido", nil)
	require.NoError(t, err)

	applied, err := s.ApplyGeneratedTitle(conv.ID, "Despido improcedente", generation)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, "Despido improcedente", s.List()[0].Title)
}

func TestApplyGeneratedTitleLosesToManualRename(t *testing.T) {
	s, _ := newTestStore(t)
	conv, err := s.CreateConversation()
	require.NoError(t, err)

	_, _, generation, err := s.AppendUserMessage(conv.ID, "consulta sobre despido", nil)
	require.NoError(t, err)

	// User renames while the model title is still in flight.
	require.NoError(t, s.Rename(conv.ID, "Mi caso"))

	applied, err := s.ApplyGeneratedTitle(conv.ID, "Despido improcedente", generation)
	require.NoError(t, err)
	require.False(t, applied, "stale generation must lose")
	require.Equal(t, "Mi caso", s.List()[0].Title)
}

func TestRenameEmptyTitleFallsBackToDefault(t *testing.T) {
	s, _ := newTestStore(t)
	conv, err := s.CreateConversation()
	require.NoError(t, err)

	require.NoError(t, s.Rename(conv.ID, "   "))
	require.Equal(t, "Nueva consulta", s.List()[0].Title)
}

func TestDeleteReturnsSnapshotAndRestoreReinserts(t *testing.T) {
	s, persister := newTestStore(t)
	conv, err := s.CreateConversation()
	require.NoError(t, err)
	_, _, _, err = s.AppendUserMessage(conv.ID, "pregunta", nil)
	require.NoError(t, err)
	_, err = s.AppendAssistantMessage(conv.ID, "respuesta")
	require.NoError(t, err)

	snapshot, err := s.Delete(conv.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Messages, 2)
	require.Empty(t, s.List())
	require.NotContains(t, persister.convs, conv.ID)

	_, err = s.Messages(conv.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)

	require.NoError(t, s.Restore(snapshot))
	msgs, err := s.Messages(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Contains(t, persister.convs, conv.ID)
}

func TestSnapshotUnaffectedByAppendsAfterRestore(t *testing.T) {
	s, _ := newTestStore(t)
	conv, err := s.CreateConversation()
	require.NoError(t, err)
	_, _, _, err = s.AppendUserMessage(conv.ID, "pregunta", nil)
	require.NoError(t, err)

	snapshot, err := s.Delete(conv.ID)
	require.NoError(t, err)
	require.NoError(t, s.Restore(snapshot))

	_, _, _, err = s.AppendUserMessage(conv.ID, "otra pregunta", nil)
	require.NoError(t, err)
	_, err = s.AppendAssistantMessage(conv.ID, "respuesta")
	require.NoError(t, err)

	require.Len(t, snapshot.Messages, 1)
	require.Equal(t, "pregunta", snapshot.Messages[0].Content)
}

func TestRestoreSortsBackIntoPosition(t *testing.T) {
	s, _ := newTestStore(t)

	first, err := s.CreateConversation()
	require.NoError(t, err)
	_, _, _, err = s.AppendUserMessage(first.ID, "antiguo", nil)
	require.NoError(t, err)

	snapshot, err := s.Delete(first.ID)
	require.NoError(t, err)

	second, err := s.CreateConversation()
	require.NoError(t, err)
	_, _, _, err = s.AppendUserMessage(second.ID, "reciente", nil)
	require.NoError(t, err)

	require.NoError(t, s.Restore(snapshot))
	list := s.List()
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID, "restored conversation keeps its old position")
	require.Equal(t, first.ID, list[1].ID)
}

func TestDeleteUnknownConversation(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Delete("missing")
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestPersistFailureLeavesMemoryUnchanged(t *testing.T) {
	s, persister := newTestStore(t)
	conv, err := s.CreateConversation()
	require.NoError(t, err)

	persister.failNext = errors.New("mysql down")
	_, _, _, err = s.AppendUserMessage(conv.ID, "hola", nil)
	require.Error(t, err)

	msgs, err := s.Messages(conv.ID)
	require.NoError(t, err)
	require.Empty(t, msgs, "failed write-through must not leave a message in memory")
}

func TestHydrateFailureDegradesToEmpty(t *testing.T) {
	persister := newMemoryPersister()
	persister.loadErr = errors.New("corrupt rows")

	s := New(persister, nil)
	require.Empty(t, s.List())

	// Store still works after a failed hydration.
	_, err := s.CreateConversation()
	require.NoError(t, err)
	require.Len(t, s.List(), 1)
}

func TestHydrateRestoresState(t *testing.T) {
	persister := newMemoryPersister()
	s := New(persister, nil)
	conv, err := s.CreateConversation()
	require.NoError(t, err)
	_, _, _, err = s.AppendUserMessage(conv.ID, "persistida", nil)
	require.NoError(t, err)

	reborn := New(persister, nil)
	list := reborn.List()
	require.Len(t, list, 1)
	require.Equal(t, conv.ID, list[0].ID)
	msgs, err := reborn.Messages(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestClearAllEmptiesEverything(t *testing.T) {
	s, persister := newTestStore(t)
	_, err := s.CreateConversation()
	require.NoError(t, err)
	_, err = s.CreateConversation()
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())
	require.Empty(t, s.List())
	require.Empty(t, persister.convs)
}

func TestTypingSubscription(t *testing.T) {
	s, _ := newTestStore(t)

	var got []string
	unsubscribe := s.SubscribeTyping(func(conversationID, buffer string, done bool) {
		got = append(got, buffer)
	})

	s.BroadcastTyping("c1", "Hola", false)
	s.BroadcastTyping("c1", "Hola mundo", false)
	require.Equal(t, []string{"Hola", "Hola mundo"}, got)

	unsubscribe()
	s.BroadcastTyping("c1", "después", false)
	require.Len(t, got, 2)
}
