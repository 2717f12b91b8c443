package builtin

import (
	"net/http"

	"termchat/tools"
)

// Reference paths understood by Resolver.
const (
	RefWeather     = "tools.get_weather.get_weather"
	RefCopyPlan    = "tools.copy_files.copy_files_plan"
	RefCopyExecute = "tools.copy_files.copy_files_execute"
	RefPower       = "tools.math.power"
)

// Options configures the built-in capabilities.
type Options struct {
	WeatherAPIKey  string
	WeatherBaseURL string
	HTTPClient     *http.Client
	// Planner is shared by the plan and execute capabilities. A fresh one
	// is created when nil.
	Planner *Planner
}

// Resolver returns the reference table for the built-in capabilities.
func Resolver(opts Options) tools.StaticResolver {
	planner := opts.Planner
	if planner == nil {
		planner = NewPlanner()
	}
	return tools.StaticResolver{
		RefWeather: &Weather{
			APIKey:  opts.WeatherAPIKey,
			BaseURL: opts.WeatherBaseURL,
			Client:  opts.HTTPClient,
		},
		RefCopyPlan:    planner.PlanCapability(),
		RefCopyExecute: planner.ExecuteCapability(),
		RefPower:       Power{},
	}
}

// DefaultCatalog is written as the tool catalog on first run.
const DefaultCatalog = `# termchat tool catalog
#
# Each entry exposes one capability to the agent command. import_path must
# name one of the built-in references below; unknown references are skipped
# with a warning.

- name: get_weather
  description: Get the current weather for a location
  import_path: tools.get_weather.get_weather

- name: copy_files_plan
  description: Propose a plan for copying a file or directory. Nothing is copied until the plan is executed.
  import_path: tools.copy_files.copy_files_plan

- name: copy_files_execute
  description: Execute or reject a previously proposed copy plan
  import_path: tools.copy_files.copy_files_execute

- name: power
  description: Raise a number to a power
  import_path: tools.math.power
`
