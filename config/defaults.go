package config

import (
	"time"

	"termchat/storage"
)

const (
	DefaultAgentWorkers  = 4
	DefaultToolTimeout   = 30 * time.Second
	DefaultWeatherKeyEnv = "WEATHER_API_KEY"
)

func DefaultSettings() *Settings {
	return &Settings{
		DataDirectory:   "~/.local/share/termchat",
		DefaultPlatform: storage.DefaultPlatform,
		Agent: AgentSettings{
			Workers: DefaultAgentWorkers,
		},
		Tools: ToolSettings{
			Timeout:       DefaultToolTimeout,
			WeatherKeyEnv: DefaultWeatherKeyEnv,
		},
	}
}

func GenerateSettingsTemplate() string {
	return `# termchat configuration
# Location: ~/.config/termchat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations, credentials and the run log are stored
data_directory = "~/.local/share/termchat"

# Platform used when conversations.json does not name one yet
# One of: openai, deepseek, openrouter, anthropic, gemini, ollama
default_platform = "deepseek"

# Tool catalog (YAML list of name / description / import_path).
# Empty means <data_directory>/tools.yaml
tool_catalog = ""

[agent]
# Maximum number of tool calls executed at once
workers = 4

[tools]
# Upper bound for a single tool call ("0s" disables the limit)
timeout = "30s"

# Environment variable holding the weatherapi.com key
weather_key_env = "WEATHER_API_KEY"

# Override a platform's endpoint or model. Keys are platform names.
# [profiles.ollama]
# base_url = "http://localhost:11434"
# model = "llama3.1:latest"
#
# [profiles.local-openai]
# type = "openai"
# key_env = "LOCAL_OPENAI_KEY"
# base_url = "http://localhost:8080/v1"
# model = "qwen2.5-7b-instruct"
`
}
