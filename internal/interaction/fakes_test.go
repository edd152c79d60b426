package interaction

import (
	"context"
	"errors"
	"sync"

	"NeoX-Agent/internal/llm"
	"NeoX-Agent/internal/memory"
	"NeoX-Agent/internal/social"
)

type replyCall struct {
	id   string
	text string
}

type fakePlatform struct {
	mu         sync.Mutex
	profile    social.Profile
	initErr    error
	mentions   [][]social.Mention
	mentionErr error
	threadErr  map[string]error
	replyErr   error

	fetches     int
	threadCalls []string
	replies     []replyCall
	initialized bool
}

func (f *fakePlatform) Init(context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.initialized = true
	return nil
}

func (f *fakePlatform) Profile() social.Profile {
	return f.profile
}

func (f *fakePlatform) GetMentions(context.Context) ([]social.Mention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.fetches
	f.fetches++
	if f.mentionErr != nil {
		return nil, f.mentionErr
	}
	if len(f.mentions) == 0 {
		return nil, nil
	}
	if idx >= len(f.mentions) {
		idx = len(f.mentions) - 1
	}
	return f.mentions[idx], nil
}

func (f *fakePlatform) GetConversationThread(_ context.Context, id string) ([]social.Mention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadCalls = append(f.threadCalls, id)
	if err := f.threadErr[id]; err != nil {
		return nil, err
	}
	return []social.Mention{{ID: "root", Text: "root post", Username: "carol"}, {ID: id}}, nil
}

func (f *fakePlatform) ReplyToTweet(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, replyCall{id: id, text: text})
	return nil
}

type fakeRuntime struct {
	id       string
	settings map[string]string
	reply    string
	err      error
	prompts  [][]llm.Message
}

func (r *fakeRuntime) ID() string { return r.id }

func (r *fakeRuntime) GetSetting(key string) (string, bool) {
	v, ok := r.settings[key]
	return v, ok && v != ""
}

func (r *fakeRuntime) GenerateText(_ context.Context, messages []llm.Message) (string, error) {
	r.prompts = append(r.prompts, messages)
	return r.reply, r.err
}

type recordingStore struct {
	saved []memory.ConversationMemory
	err   error
}

func (s *recordingStore) Save(_ context.Context, mem memory.ConversationMemory) error {
	s.saved = append(s.saved, mem)
	return s.err
}

type failingSet struct {
	*MemorySet
	failID string
}

func (s failingSet) Has(ctx context.Context, id string) (bool, error) {
	if id == s.failID {
		return false, errors.New("redis unavailable")
	}
	return s.MemorySet.Has(ctx, id)
}
