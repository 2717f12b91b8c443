package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"termchat/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultPlatform is used when the persisted document names no platform.
	DefaultPlatform = "deepseek"
	// DefaultMaxTokens is the generation limit used when none is persisted.
	DefaultMaxTokens = 1024

	// CreatedAtLayout is the minute-precision timestamp written to created_at.
	CreatedAtLayout = "2006-01-02 15:04"

	temporaryPrefix = "temp_"
)

// Conversation is an ordered message history stored under a unique name.
type Conversation struct {
	CreatedAt string          `json:"created_at"`
	Messages  []model.Message `json:"messages"`
}

// Document is the persisted store layout. Field names are kept compatible
// with files written by earlier versions of the client.
type Document struct {
	Active             string                   `json:"active"`
	PreviousActiveList []string                 `json:"previous_active_list"`
	Platform           string                   `json:"platform"`
	PreviousPlatform   string                   `json:"previous_platform,omitempty"`
	MaxTokens          int                      `json:"max_tokens"`
	Conversations      map[string]*Conversation `json:"conversations"`
}

// Summary describes a conversation for listings.
type Summary struct {
	Name         string
	CreatedAt    string
	MessageCount int
	Active       bool
}

// Options configures Open.
type Options struct {
	Logger          *zap.Logger
	DefaultPlatform string
	Now             func() time.Time
}

// Store owns every conversation and the selection state. It is single-writer:
// every mutation rewrites the whole document before returning.
type Store struct {
	path            string
	doc             Document
	logger          *zap.Logger
	now             func() time.Time
	defaultPlatform string
}

// Open loads the document at path, or starts from defaults when the file does
// not exist yet. Dangling selection history entries are pruned on every load.
func Open(path string, opts Options) (*Store, error) {
	s := &Store{
		path:            path,
		logger:          opts.Logger,
		now:             opts.Now,
		defaultPlatform: opts.DefaultPlatform,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.defaultPlatform == "" {
		s.defaultPlatform = DefaultPlatform
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = Document{}
		s.normalize()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read conversations file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse conversations file: %w", err)
	}
	s.doc = doc
	s.normalize()
	return nil
}

// normalize applies defaults for missing keys and enforces the reference
// invariants on active and previous_active_list.
func (s *Store) normalize() {
	d := &s.doc
	if d.Conversations == nil {
		d.Conversations = make(map[string]*Conversation)
	}
	for name, conv := range d.Conversations {
		if conv == nil {
			conv = &Conversation{}
			d.Conversations[name] = conv
		}
		if conv.Messages == nil {
			conv.Messages = []model.Message{}
		}
	}
	if d.Platform == "" {
		d.Platform = s.defaultPlatform
	}
	if d.MaxTokens <= 0 {
		d.MaxTokens = DefaultMaxTokens
	}

	pruned := make([]string, 0, len(d.PreviousActiveList))
	for _, name := range d.PreviousActiveList {
		if _, ok := d.Conversations[name]; ok {
			pruned = append(pruned, name)
		}
	}
	if dropped := len(d.PreviousActiveList) - len(pruned); dropped > 0 {
		s.logger.Debug("pruned dangling history entries", zap.Int("count", dropped))
	}
	d.PreviousActiveList = pruned

	if d.Active != "" {
		if _, ok := d.Conversations[d.Active]; !ok {
			s.logger.Warn("active conversation no longer exists", zap.String("name", d.Active))
			d.Active = ""
		}
	}
}

// Save writes the whole document. The file is written next to its final
// location and renamed into place so a crash never leaves a torn file.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".conversations-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	// Conversation history is private: 0600 like the session files it replaces
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write conversations: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync conversations: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace conversations file: %w", err)
	}

	s.logger.Debug("store saved", zap.String("path", s.path), zap.Int("conversations", len(s.doc.Conversations)))
	return nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Active returns the active conversation name, or "" when none is active.
func (s *Store) Active() string { return s.doc.Active }

// History returns a copy of the selection history, most recent last.
func (s *Store) History() []string { return slices.Clone(s.doc.PreviousActiveList) }

// Platform returns the configured platform.
func (s *Store) Platform() string { return s.doc.Platform }

// PreviousPlatform returns the last platform that resolved successfully.
func (s *Store) PreviousPlatform() string { return s.doc.PreviousPlatform }

// MaxTokens returns the generation limit.
func (s *Store) MaxTokens() int { return s.doc.MaxTokens }

// Len returns the number of stored conversations.
func (s *Store) Len() int { return len(s.doc.Conversations) }

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() Document {
	out := s.doc
	out.PreviousActiveList = slices.Clone(s.doc.PreviousActiveList)
	out.Conversations = make(map[string]*Conversation, len(s.doc.Conversations))
	for name, conv := range s.doc.Conversations {
		out.Conversations[name] = &Conversation{
			CreatedAt: conv.CreatedAt,
			Messages:  cloneMessages(conv.Messages),
		}
	}
	return out
}

// SetPlatform records the platform to use for later requests.
func (s *Store) SetPlatform(platform string) error {
	if platform == "" {
		return fmt.Errorf("platform: %w", model.ErrValidation)
	}
	s.doc.Platform = platform
	return s.Save()
}

// SetPreviousPlatform records the last platform that resolved successfully.
func (s *Store) SetPreviousPlatform(platform string) error {
	s.doc.PreviousPlatform = platform
	return s.Save()
}

// SetMaxTokens records the generation limit.
func (s *Store) SetMaxTokens(n int) error {
	if n <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d: %w", n, model.ErrValidation)
	}
	s.doc.MaxTokens = n
	return s.Save()
}

// Get returns the named conversation. The returned value is owned by the
// store; callers mutate its messages and then call Save.
func (s *Store) Get(name string) (*Conversation, error) {
	conv, ok := s.doc.Conversations[name]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", name, model.ErrNotFound)
	}
	return conv, nil
}

// ActiveConversation returns the active conversation.
func (s *Store) ActiveConversation() (string, *Conversation, error) {
	if s.doc.Active == "" {
		return "", nil, fmt.Errorf("no active conversation: %w", model.ErrNotFound)
	}
	conv, err := s.Get(s.doc.Active)
	return s.doc.Active, conv, err
}

// Exists reports whether a conversation with name is stored.
func (s *Store) Exists(name string) bool {
	_, ok := s.doc.Conversations[name]
	return ok
}

// Names returns every conversation name, oldest first.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.doc.Conversations))
	for name := range s.doc.Conversations {
		names = append(names, name)
	}
	s.sortByAge(names)
	return names
}

// List summarizes every conversation, oldest first.
func (s *Store) List() []Summary {
	names := s.Names()
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		conv := s.doc.Conversations[name]
		out = append(out, Summary{
			Name:         name,
			CreatedAt:    conv.CreatedAt,
			MessageCount: len(conv.Messages),
			Active:       name == s.doc.Active,
		})
	}
	return out
}

func (s *Store) sortByAge(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := s.doc.Conversations[names[i]], s.doc.Conversations[names[j]]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return names[i] < names[j]
	})
}

// displace pushes the current active conversation onto the history when
// next replaces it.
func (s *Store) displace(next string) {
	cur := s.doc.Active
	if cur != "" && cur != next {
		s.doc.PreviousActiveList = append(s.doc.PreviousActiveList, cur)
	}
	s.doc.Active = next
}

func (s *Store) newConversation() *Conversation {
	return &Conversation{
		CreatedAt: s.now().Format(CreatedAtLayout),
		Messages:  []model.Message{},
	}
}

// Create adds an empty conversation and makes it active.
func (s *Store) Create(name string) error {
	if name == "" {
		return fmt.Errorf("conversation name: %w", model.ErrValidation)
	}
	if s.Exists(name) {
		return fmt.Errorf("conversation %q: %w", name, model.ErrConflict)
	}
	s.doc.Conversations[name] = s.newConversation()
	s.displace(name)
	return s.Save()
}

// CreateUnique creates a conversation named base, or base_2, base_3, ... when
// base is taken, and returns the name used.
func (s *Store) CreateUnique(base string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("conversation name: %w", model.ErrValidation)
	}
	name := base
	for i := 2; s.Exists(name); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	return name, s.Create(name)
}

// Select makes name the active conversation.
func (s *Store) Select(name string) error {
	if !s.Exists(name) {
		return fmt.Errorf("conversation %q: %w", name, model.ErrNotFound)
	}
	s.displace(name)
	return s.Save()
}

// Delete removes a conversation and every history reference to it. When the
// deleted conversation was active, the most recent history entry takes its
// place; failing that the oldest remaining conversation; failing that none.
// It returns the resulting active name.
func (s *Store) Delete(name string) (string, error) {
	if !s.Exists(name) {
		return s.doc.Active, fmt.Errorf("conversation %q: %w", name, model.ErrNotFound)
	}
	delete(s.doc.Conversations, name)
	s.doc.PreviousActiveList = slices.DeleteFunc(s.doc.PreviousActiveList, func(n string) bool {
		return n == name
	})

	if s.doc.Active == name {
		switch {
		case len(s.doc.PreviousActiveList) > 0:
			last := len(s.doc.PreviousActiveList) - 1
			s.doc.Active = s.doc.PreviousActiveList[last]
			s.doc.PreviousActiveList = s.doc.PreviousActiveList[:last]
		case len(s.doc.Conversations) > 0:
			s.doc.Active = s.Names()[0]
		default:
			s.doc.Active = ""
		}
	}

	s.logger.Debug("conversation deleted", zap.String("name", name), zap.String("active", s.doc.Active))
	return s.doc.Active, s.Save()
}

// Clone deep-copies source into newName with a fresh creation time and makes
// the clone active without touching the selection history.
func (s *Store) Clone(source, newName string) error {
	src, err := s.Get(source)
	if err != nil {
		return err
	}
	if s.Exists(newName) {
		return fmt.Errorf("conversation %q: %w", newName, model.ErrConflict)
	}
	if newName == "" {
		return fmt.Errorf("conversation name: %w", model.ErrValidation)
	}

	conv := s.newConversation()
	conv.Messages = cloneMessages(src.Messages)
	s.doc.Conversations[newName] = conv
	s.doc.Active = newName
	return s.Save()
}

// TitleFunc derives a conversation name from message text.
type TitleFunc func(text string) (string, error)

// Rename moves old to newName, rewriting active and every history entry.
// When newName is empty it is derived by title from the last message of the
// conversation. It returns the name used.
func (s *Store) Rename(old, newName string, title TitleFunc) (string, error) {
	conv, err := s.Get(old)
	if err != nil {
		return "", err
	}

	if newName == "" {
		text, err := s.LastMessage(old)
		if err != nil {
			return "", err
		}
		if title == nil {
			return "", fmt.Errorf("no name given for %q: %w", old, model.ErrValidation)
		}
		newName, err = title(text)
		if err != nil {
			return "", err
		}
		if newName == "" {
			return "", fmt.Errorf("generated name for %q is empty: %w", old, model.ErrValidation)
		}
	}

	if newName == old {
		return old, nil
	}
	if s.Exists(newName) {
		return "", fmt.Errorf("conversation %q: %w", newName, model.ErrConflict)
	}

	delete(s.doc.Conversations, old)
	s.doc.Conversations[newName] = conv
	if s.doc.Active == old {
		s.doc.Active = newName
	}
	for i, n := range s.doc.PreviousActiveList {
		if n == old {
			s.doc.PreviousActiveList[i] = newName
		}
	}
	return newName, s.Save()
}

// LastMessage returns the content of the final message of name.
func (s *Store) LastMessage(name string) (string, error) {
	conv, err := s.Get(name)
	if err != nil {
		return "", err
	}
	if len(conv.Messages) == 0 {
		return "", fmt.Errorf("conversation %q has no messages: %w", name, model.ErrValidation)
	}
	return conv.Messages[len(conv.Messages)-1].Content, nil
}

// Temporary is an unnamed conversation that is either adopted under a real
// name or discarded when the interactive session ends.
type Temporary struct {
	Name     string
	previous string
}

// CreateTemporary starts an unnamed conversation and makes it active. The
// displaced conversation is remembered but only pushed onto the history if
// the temporary conversation is adopted.
func (s *Store) CreateTemporary() (*Temporary, error) {
	t := &Temporary{
		Name:     temporaryPrefix + strconv.FormatInt(s.now().UnixNano(), 10),
		previous: s.doc.Active,
	}
	s.doc.Conversations[t.Name] = s.newConversation()
	s.doc.Active = t.Name
	if err := s.Save(); err != nil {
		return nil, err
	}
	return t, nil
}

// Discard removes a temporary conversation and restores the conversation
// that was active before it, if that still exists.
func (s *Store) Discard(t *Temporary) error {
	delete(s.doc.Conversations, t.Name)
	s.doc.Active = ""
	if t.previous != "" && s.Exists(t.previous) {
		s.doc.Active = t.previous
	}
	return s.Save()
}

// Adopt keeps a temporary conversation under name and makes it active.
func (s *Store) Adopt(t *Temporary, name string) error {
	conv, err := s.Get(t.Name)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("conversation name: %w", model.ErrValidation)
	}
	if name != t.Name && s.Exists(name) {
		return fmt.Errorf("conversation %q: %w", name, model.ErrConflict)
	}

	delete(s.doc.Conversations, t.Name)
	s.doc.Conversations[name] = conv
	if t.previous != "" && t.previous != t.Name && s.Exists(t.previous) {
		s.doc.PreviousActiveList = append(s.doc.PreviousActiveList, t.previous)
	}
	s.doc.Active = name
	return s.Save()
}

func cloneMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if len(m.ToolCalls) > 0 {
			out[i].ToolCalls = make([]model.ToolCall, len(m.ToolCalls))
			for j, c := range m.ToolCalls {
				c.Arguments = cloneArgs(c.Arguments)
				out[i].ToolCalls[j] = c
			}
		}
	}
	return out
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
