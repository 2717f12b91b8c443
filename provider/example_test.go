package provider_test

import (
	"context"
	"fmt"
	"log"

	"termchat/model"
	"termchat/provider"
)

// ExampleNewProvider demonstrates creating an Ollama provider using the factory.
func ExampleNewProvider() {
	p, err := provider.NewProvider(provider.Config{
		Type:    provider.TypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Provider created: %T\n", p)
	// Output: Provider created: *provider.OllamaProvider
}

// ExampleResolver_Resolve shows the single fallback to the previous platform.
func ExampleResolver_Resolve() {
	r := &provider.Resolver{
		Profiles: provider.DefaultProfiles(),
		Keys: func(platform string, _ provider.Profile) (string, bool) {
			return "", false
		},
	}

	res, err := r.Resolve("deepseek", "ollama")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Platform, res.FellBack)
	// Output: ollama true
}

// ExampleOllamaProvider_Chat demonstrates streaming a reply.
//
// Note: This example doesn't run because it requires a live Ollama server.
func ExampleOllamaProvider_Chat() {
	p, err := provider.NewOllamaProvider(provider.Config{Model: "llama3.1"})
	if err != nil {
		log.Fatal(err)
	}

	messages := []model.Message{model.UserMessage("Hello!")}
	err = p.Chat(context.Background(), messages, model.ChatOptions{MaxTokens: 256}, func(chunk string, _ []model.ToolCall) error {
		fmt.Print(chunk)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
}
