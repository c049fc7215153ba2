package fleetconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fleetops/fleetops/internal/fleeterr"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// fleetFile mirrors the top-level fleet YAML document described in
// spec.md §6: version, fleet metadata, and an ordered list of agent file
// references.
type fleetFile struct {
	Version  int       `yaml:"version"`
	Fleet    FleetMeta `yaml:"fleet"`
	StateDir string    `yaml:"state_dir"`
	Agents   []struct {
		Path string `yaml:"path"`
	} `yaml:"agents"`
}

// Load parses the fleet YAML at fleetPath and every agent file it
// references, validates the result, and returns a fully resolved
// FleetConfig. Duplicate agent names are a fatal configuration error
// whose message names the collision, per spec.md §3/§4.5.
func Load(fleetPath string) (*FleetConfig, error) {
	absPath, err := filepath.Abs(fleetPath)
	if err != nil {
		return nil, &fleeterr.ConfigurationError{ConfigPath: fleetPath, ValidationErrors: []string{err.Error()}, Cause: err}
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &fleeterr.ConfigurationError{ConfigPath: absPath, ValidationErrors: []string{err.Error()}, Cause: err}
	}

	var ff fleetFile
	if err := yaml.Unmarshal(expandEnv(data), &ff); err != nil {
		return nil, &fleeterr.ConfigurationError{ConfigPath: absPath, ValidationErrors: []string{err.Error()}, Cause: err}
	}

	configDir := filepath.Dir(absPath)
	stateDir := ff.StateDir
	switch {
	case stateDir == "":
		stateDir = filepath.Join(configDir, "state")
	case !filepath.IsAbs(stateDir):
		stateDir = filepath.Join(configDir, stateDir)
	}
	cfg := &FleetConfig{
		Version:    ff.Version,
		Meta:       ff.Fleet,
		ConfigPath: absPath,
		ConfigDir:  configDir,
		StateDir:   stateDir,
	}

	seen := map[string]string{}
	var validationErrors []string
	for _, ref := range ff.Agents {
		agentPath := ref.Path
		if !filepath.IsAbs(agentPath) {
			agentPath = filepath.Join(configDir, agentPath)
		}
		agent, err := loadAgentFile(agentPath)
		if err != nil {
			validationErrors = append(validationErrors, err.Error())
			continue
		}
		if agent.Name == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("agent file %s missing required name", agentPath))
			continue
		}
		if prior, dup := seen[agent.Name]; dup {
			validationErrors = append(validationErrors, fmt.Sprintf("duplicate agent name %q (defined in %s and %s)", agent.Name, prior, agentPath))
			continue
		}
		seen[agent.Name] = agentPath
		cfg.Agents = append(cfg.Agents, agent)
	}

	if len(validationErrors) > 0 {
		return nil, &fleeterr.ConfigurationError{ConfigPath: absPath, ValidationErrors: validationErrors}
	}

	// Overlay process-wide runtime knobs from the environment, mirroring
	// the teacher's envconfig.Process("<PREFIX>", &group) idiom for its
	// own config groups.
	if err := envconfig.Process("FLEETOPS_RUNTIME", &cfg.Runtime); err != nil {
		return nil, &fleeterr.ConfigurationError{ConfigPath: absPath, ValidationErrors: []string{err.Error()}, Cause: err}
	}

	return cfg, nil
}

func loadAgentFile(path string) (Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Agent{}, err
	}
	var agent Agent
	if err := yaml.Unmarshal(expandEnv(data), &agent); err != nil {
		return Agent{}, fmt.Errorf("parse agent file %s: %w", path, err)
	}
	for name, sched := range agent.Schedules {
		sched.Name = name
		agent.Schedules[name] = sched
	}
	agent.ConfigDir = filepath.Dir(path)
	agent.SourcePath = path
	return agent, nil
}

// expandEnv substitutes ${VAR} references in the raw YAML bytes before
// parsing, applied to the whole document up front since YAML (unlike
// JSON) is line-oriented and safe to string-substitute prior to parse.
func expandEnv(data []byte) []byte {
	return []byte(envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	}))
}
