package provider

import (
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"termchat/model"
)

// Profile is a named platform: which implementation to use, where its API
// key comes from and which endpoint and model it talks to by default.
type Profile struct {
	Type    Type
	KeyEnv  string // empty for platforms that need no key
	BaseURL string
	Model   string
}

// DefaultProfiles returns the built-in profile table keyed by platform name.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"openai":     {Type: TypeOpenAI, KeyEnv: "OPENAI_API_KEY", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
		"deepseek":   {Type: TypeDeepSeek, KeyEnv: "DEEPSEEK_API_KEY", BaseURL: "https://api.deepseek.com", Model: "deepseek-chat"},
		"openrouter": {Type: TypeOpenRouter, KeyEnv: "OPENROUTER_API_KEY", BaseURL: "https://openrouter.ai/api/v1"},
		"anthropic":  {Type: TypeAnthropic, KeyEnv: "ANTHROPIC_API_KEY"},
		"gemini":     {Type: TypeGemini, KeyEnv: "GEMINI_API_KEY", Model: defaultGeminiModel},
		"ollama":     {Type: TypeOllama},
	}
}

// KeyLookup returns the API key for a platform, if one is known.
type KeyLookup func(platform string, profile Profile) (string, bool)

// EnvKeys looks keys up in the profile's environment variable.
func EnvKeys(getenv func(string) string) KeyLookup {
	return func(_ string, profile Profile) (string, bool) {
		if profile.KeyEnv == "" {
			return "", false
		}
		v := getenv(profile.KeyEnv)
		return v, v != ""
	}
}

// FirstKey tries each lookup in order.
func FirstKey(lookups ...KeyLookup) KeyLookup {
	return func(platform string, profile Profile) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if v, ok := lookup(platform, profile); ok {
				return v, true
			}
		}
		return "", false
	}
}

// Resolver turns a stored platform name into a ready provider.
type Resolver struct {
	Profiles   map[string]Profile
	Keys       KeyLookup
	HTTPClient *http.Client
	Logger     *zap.Logger

	// Factory builds the provider; nil uses NewProvider.
	Factory func(Config) (model.Provider, error)
}

// Resolution is the platform that was actually resolved.
type Resolution struct {
	Platform string
	Profile  Profile
	Provider model.Provider
	// FellBack is set when the requested platform failed and the previous
	// one was used instead. Cause holds the original failure.
	FellBack bool
	Cause    error
}

// Resolve builds the provider for platform. When that fails for any reason
// (unknown name, missing key, client construction) and previous names a
// different platform, exactly one fallback to previous is attempted.
func (r *Resolver) Resolve(platform, previous string) (*Resolution, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	res, err := r.build(platform)
	if err == nil {
		return res, nil
	}
	if previous == "" || previous == platform {
		return nil, err
	}

	logger.Warn("platform unavailable, falling back",
		zap.String("platform", platform),
		zap.String("previous", previous),
		zap.Error(err))

	fallback, ferr := r.build(previous)
	if ferr != nil {
		return nil, fmt.Errorf("%w (fallback %q: %w)", err, previous, ferr)
	}
	fallback.FellBack = true
	fallback.Cause = err
	return fallback, nil
}

func (r *Resolver) build(platform string) (*Resolution, error) {
	profile, ok := r.Profiles[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", model.ErrUnknownPlatform, platform, r.Names())
	}

	var key string
	if r.Keys != nil {
		key, _ = r.Keys(platform, profile)
	}
	if key == "" && profile.KeyEnv != "" {
		return nil, fmt.Errorf("%w: no API key for %q; set %s or add it to credentials.toml",
			model.ErrCredentialMissing, platform, profile.KeyEnv)
	}

	factory := r.Factory
	if factory == nil {
		factory = NewProvider
	}
	p, err := factory(Config{
		Type:       profile.Type,
		BaseURL:    profile.BaseURL,
		Model:      profile.Model,
		APIKey:     key,
		HTTPClient: r.HTTPClient,
		Logger:     r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %q client: %w", platform, err)
	}
	return &Resolution{Platform: platform, Profile: profile, Provider: p}, nil
}

// Names returns the known platform names, sorted.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.Profiles))
	for name := range r.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
