// Package project defines the detected facts about a repository that drive
// deployment decisions.
package project

import "strings"

// Metadata holds the facts a project scanner detected about a repository.
// It is produced by an external scanner and treated as read-only.
type Metadata struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Language  string `json:"language,omitempty" yaml:"language,omitempty"`
	Framework string `json:"framework,omitempty" yaml:"framework,omitempty"`

	InstallCommand string `json:"install_cmd,omitempty" yaml:"install_cmd,omitempty"`
	BuildCommand   string `json:"build_cmd,omitempty" yaml:"build_cmd,omitempty"`
	RunCommand     string `json:"run_cmd,omitempty" yaml:"run_cmd,omitempty"`
	WorkDir        string `json:"workdir,omitempty" yaml:"workdir,omitempty"`
	Port           int    `json:"port,omitempty" yaml:"port,omitempty"`

	IsLibrary                  bool `json:"is_library,omitempty" yaml:"is_library,omitempty"`
	UsesMobile                 bool `json:"uses_mobile,omitempty" yaml:"uses_mobile,omitempty"`
	UsesWebsockets             bool `json:"uses_websockets,omitempty" yaml:"uses_websockets,omitempty"`
	RequiresBuildButMissingCmd bool `json:"requires_build_but_missing_cmd,omitempty" yaml:"requires_build_but_missing_cmd,omitempty"`

	MonorepoServices []string `json:"monorepo_services,omitempty" yaml:"monorepo_services,omitempty"`
	RequiresDatabase bool     `json:"requires_db,omitempty" yaml:"requires_db,omitempty"`
	DatabaseType     string   `json:"db_type,omitempty" yaml:"db_type,omitempty"`
	HasDockerfile    bool     `json:"has_dockerfile,omitempty" yaml:"has_dockerfile,omitempty"`
	IsNodeStatic     bool     `json:"is_node_static,omitempty" yaml:"is_node_static,omitempty"`
	IsEBLanguage     bool     `json:"is_eb_language,omitempty" yaml:"is_eb_language,omitempty"`

	// Compatibility is a prior per-target compatibility analysis keyed by
	// target name. Nil or empty means no analysis was performed.
	Compatibility map[string]bool `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`
}

// managedRuntimeLanguages are languages with a first-class Elastic Beanstalk platform.
var managedRuntimeLanguages = map[string]bool{
	"node":       true,
	"nodejs":     true,
	"javascript": true,
	"typescript": true,
	"python":     true,
	"java":       true,
	"go":         true,
	"ruby":       true,
	"php":        true,
	".net":       true,
	"dotnet":     true,
	"csharp":     true,
}

// IsMultiService returns true if the repository contains more than one service.
func (m *Metadata) IsMultiService() bool {
	return len(m.MonorepoServices) > 1
}

// HasServerEntrypoint returns true if anything in the project can run as a process.
func (m *Metadata) HasServerEntrypoint() bool {
	return strings.TrimSpace(m.RunCommand) != "" || len(m.MonorepoServices) > 0 || m.HasDockerfile
}

// HasLanguage returns true if a language or framework was detected.
func (m *Metadata) HasLanguage() bool {
	return strings.TrimSpace(m.Language) != "" || strings.TrimSpace(m.Framework) != ""
}

// SupportsManagedRuntime returns true if the scanner flagged the project as
// an Elastic Beanstalk language, or its language is one of the known ones.
func (m *Metadata) SupportsManagedRuntime() bool {
	if m.IsEBLanguage {
		return true
	}
	return managedRuntimeLanguages[strings.ToLower(strings.TrimSpace(m.Language))]
}

// HasCompatibility returns true if a prior compatibility analysis is present.
func (m *Metadata) HasCompatibility() bool {
	return len(m.Compatibility) > 0
}
