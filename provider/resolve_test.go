package provider

import (
	"errors"
	"testing"

	"termchat/model"
	"termchat/provider/testutil"
)

func staticKeys(keys map[string]string) KeyLookup {
	return func(platform string, _ Profile) (string, bool) {
		k, ok := keys[platform]
		return k, ok
	}
}

func TestResolve(t *testing.T) {
	var built []Config
	factory := func(cfg Config) (model.Provider, error) {
		built = append(built, cfg)
		if cfg.APIKey == "broken" {
			return nil, errors.New("bad endpoint")
		}
		return testutil.NewMockProvider(cfg.Model), nil
	}

	tests := []struct {
		name         string
		keys         map[string]string
		platform     string
		previous     string
		wantPlatform string
		wantFellBack bool
		wantErr      error
	}{
		{
			name:         "requested platform works",
			keys:         map[string]string{"deepseek": "k"},
			platform:     "deepseek",
			previous:     "openai",
			wantPlatform: "deepseek",
		},
		{
			name:         "missing key falls back",
			keys:         map[string]string{"openai": "k"},
			platform:     "deepseek",
			previous:     "openai",
			wantPlatform: "openai",
			wantFellBack: true,
		},
		{
			name:         "unknown platform falls back",
			keys:         map[string]string{"openai": "k"},
			platform:     "nope",
			previous:     "openai",
			wantPlatform: "openai",
			wantFellBack: true,
		},
		{
			name:         "client failure falls back",
			keys:         map[string]string{"deepseek": "broken", "openai": "k"},
			platform:     "deepseek",
			previous:     "openai",
			wantPlatform: "openai",
			wantFellBack: true,
		},
		{
			name:         "ollama needs no key",
			platform:     "ollama",
			wantPlatform: "ollama",
		},
		{
			name:     "no previous platform",
			platform: "deepseek",
			wantErr:  model.ErrCredentialMissing,
		},
		{
			name:     "previous is the same platform",
			platform: "deepseek",
			previous: "deepseek",
			wantErr:  model.ErrCredentialMissing,
		},
		{
			name:     "both fail",
			platform: "deepseek",
			previous: "nope",
			wantErr:  model.ErrCredentialMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built = nil
			r := &Resolver{
				Profiles: DefaultProfiles(),
				Keys:     staticKeys(tt.keys),
				Factory:  factory,
			}
			res, err := r.Resolve(tt.platform, tt.previous)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Platform != tt.wantPlatform || res.FellBack != tt.wantFellBack {
				t.Errorf("got platform=%s fellBack=%v, want %s %v", res.Platform, res.FellBack, tt.wantPlatform, tt.wantFellBack)
			}
			if res.FellBack && res.Cause == nil {
				t.Error("fallback must record the original cause")
			}
			if len(built) > 2 {
				t.Errorf("at most one fallback attempt expected, built %d clients", len(built))
			}
		})
	}
}

func TestResolveBothFailMentionsFallback(t *testing.T) {
	r := &Resolver{Profiles: DefaultProfiles()}
	_, err := r.Resolve("deepseek", "nope")
	if !errors.Is(err, model.ErrUnknownPlatform) {
		t.Errorf("expected fallback error to be wrapped too, got %v", err)
	}
}

func TestKeyLookups(t *testing.T) {
	env := map[string]string{"DEEPSEEK_API_KEY": "from-env"}
	getenv := func(k string) string { return env[k] }

	profiles := DefaultProfiles()
	lookup := FirstKey(nil, staticKeys(map[string]string{"openai": "from-file"}), EnvKeys(getenv))

	if k, ok := lookup("openai", profiles["openai"]); !ok || k != "from-file" {
		t.Errorf("expected file key first, got %q %v", k, ok)
	}
	if k, ok := lookup("deepseek", profiles["deepseek"]); !ok || k != "from-env" {
		t.Errorf("expected env key, got %q %v", k, ok)
	}
	if _, ok := lookup("ollama", profiles["ollama"]); ok {
		t.Error("ollama has no key variable")
	}
}

func TestResolverNames(t *testing.T) {
	r := &Resolver{Profiles: DefaultProfiles()}
	names := r.Names()
	if len(names) != 6 || names[0] != "anthropic" || names[5] != "openrouter" {
		t.Errorf("unexpected names %v", names)
	}
}
