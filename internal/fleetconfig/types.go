// Package fleetconfig implements the fleet configuration model: parsing,
// validation, path resolution, and reload diffing. spec.md §6 mandates a
// fleet YAML file that references per-agent YAML files by relative path,
// so this package parses YAML (gopkg.in/yaml.v3) after substituting
// ${VAR} references from the environment, and overlays FLEETOPS_RUNTIME_*
// variables onto the Runtime settings. Chat bot tokens are not read here:
// bindings name the environment variables that hold them.
package fleetconfig

import "time"

// ChatBindings holds the optional chat integrations an agent exposes.
type ChatBindings struct {
	Discord *DiscordBinding `yaml:"discord,omitempty"`
	Slack   *SlackBinding   `yaml:"slack,omitempty"`
}

// DiscordBinding configures the Discord connector for one agent.
type DiscordBinding struct {
	BotTokenEnv        string      `yaml:"bot_token_env"`
	ChannelIDs         []string    `yaml:"channel_ids,omitempty"`
	GuildID            string      `yaml:"guild_id,omitempty"`
	Output             OutputFlags `yaml:"output,omitempty"`
	MaxOutputChars     int         `yaml:"max_output_chars,omitempty"`
	SessionExpiryHours int         `yaml:"session_expiry_hours,omitempty"`
}

// SlackBinding configures the Slack connector for one agent.
type SlackBinding struct {
	BotTokenEnv        string      `yaml:"bot_token_env"`
	AppTokenEnv        string      `yaml:"app_token_env"`
	ChannelIDs         []string    `yaml:"channel_ids,omitempty"`
	Output             OutputFlags `yaml:"output,omitempty"`
	SessionExpiryHours int         `yaml:"session_expiry_hours,omitempty"`
}

// OutputFlags toggles the embed-producing message classes a chat manager
// renders beyond plain assistant text.
type OutputFlags struct {
	ToolResults   bool `yaml:"tool_results,omitempty"`
	SystemStatus  bool `yaml:"system_status,omitempty"`
	ResultSummary bool `yaml:"result_summary,omitempty"`
	Errors        bool `yaml:"errors,omitempty"`
}

// Schedule is a per-agent time-driven trigger rule.
type Schedule struct {
	Name     string `yaml:"-"`
	Type     string `yaml:"type"`
	Interval string `yaml:"interval"`
	Prompt   string `yaml:"prompt,omitempty"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled returns the resolved enabled flag, defaulting to true.
func (s Schedule) IsEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// WorkingDir supports both the bare-string and {root: ...} YAML shapes
// spec.md §3 allows for an agent's working directory.
type WorkingDir struct {
	Root string
}

// UnmarshalYAML accepts either a scalar string or a mapping with a "root"
// key.
func (w *WorkingDir) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		w.Root = s
		return nil
	}
	var obj struct {
		Root string `yaml:"root"`
	}
	if err := unmarshal(&obj); err != nil {
		return err
	}
	w.Root = obj.Root
	return nil
}

// Agent is a resolved agent definition: the raw YAML plus filesystem
// resolution (absolute working directory, schedule names filled in).
type Agent struct {
	Name          string              `yaml:"name"`
	Model         string              `yaml:"model"`
	WorkDir       WorkingDir          `yaml:"workdir,omitempty"`
	MaxConcurrent int                 `yaml:"max_concurrent,omitempty"`
	Runtime       string              `yaml:"runtime,omitempty"`
	Schedules     map[string]Schedule `yaml:"schedules,omitempty"`
	Chat          *ChatBindings       `yaml:"chat,omitempty"`

	// ConfigDir is the directory the agent's own YAML file lives in, used
	// to resolve a default working directory when WorkDir is empty.
	ConfigDir string `yaml:"-"`
	// SourcePath is the absolute path to the agent's YAML file.
	SourcePath string `yaml:"-"`
}

// ResolvedWorkDir returns the agent's working directory, defaulting to
// its config directory when unset.
func (a Agent) ResolvedWorkDir() string {
	if a.WorkDir.Root != "" {
		return a.WorkDir.Root
	}
	return a.ConfigDir
}

// ResolvedMaxConcurrent returns max_concurrent, defaulting to 1.
func (a Agent) ResolvedMaxConcurrent() int {
	if a.MaxConcurrent <= 0 {
		return 1
	}
	return a.MaxConcurrent
}

// ResolvedRuntime returns the runtime tag, defaulting to "sdk".
func (a Agent) ResolvedRuntime() string {
	if a.Runtime == "" {
		return "sdk"
	}
	return a.Runtime
}

// FleetMeta is the free-form "fleet" block of the fleet YAML.
type FleetMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// RuntimeOverlay holds process-wide knobs that are deliberately kept out
// of the fleet YAML (they govern this process, not the fleet's shape)
// and are instead overlaid from the environment, following the same
// envconfig.Process("<PREFIX>", &group) idiom the teacher uses for its
// own SchedulerConfig/PathsConfig groups. A zero value means "not set by
// the environment"; cmd/fleetops/cmd falls back to its own flag defaults
// in that case.
type RuntimeOverlay struct {
	CheckInterval     time.Duration `envconfig:"CHECK_INTERVAL"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
	RetentionPerAgent int           `envconfig:"RETENTION_MAX_PER_AGENT"`
	RetentionTotal    int           `envconfig:"RETENTION_MAX_TOTAL"`
}

// FleetConfig is the fully resolved, immutable fleet definition. It is
// replaced wholesale on reload, never mutated in place.
type FleetConfig struct {
	Version    int
	Meta       FleetMeta
	Agents     []Agent
	ConfigPath string
	ConfigDir  string
	// StateDir is where jobs/ and sessions/ live: the fleet YAML's
	// state_dir (resolved against ConfigDir when relative), defaulting
	// to <ConfigDir>/state.
	StateDir string
	// Runtime carries the FLEETOPS_RUNTIME_* environment overlay
	// (spec.md's ambient config stack), resolved once at load time.
	Runtime RuntimeOverlay
}

// AgentByName looks up an agent by name.
func (f *FleetConfig) AgentByName(name string) (Agent, bool) {
	for _, a := range f.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// AgentNames returns the ordered list of configured agent names.
func (f *FleetConfig) AgentNames() []string {
	names := make([]string, len(f.Agents))
	for i, a := range f.Agents {
		names[i] = a.Name
	}
	return names
}
