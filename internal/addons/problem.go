package addons

import "fmt"

// ProblemKind classifies a Problem
type ProblemKind int

const (
	ProblemFileMissing ProblemKind = iota
	ProblemPublishedFileDetails
	ProblemUnresolvedPackage
	ProblemDownloadFailed
	ProblemEnableStrategy
	ProblemChildren
	ProblemInvalidVpk
)

func (k ProblemKind) String() string {
	switch k {
	case ProblemFileMissing:
		return "file-missing"
	case ProblemPublishedFileDetails:
		return "published-file-details"
	case ProblemUnresolvedPackage:
		return "unresolved-package"
	case ProblemDownloadFailed:
		return "download-failed"
	case ProblemEnableStrategy:
		return "enable-strategy"
	case ProblemChildren:
		return "children"
	case ProblemInvalidVpk:
		return "invalid-vpk"
	default:
		return "unknown"
	}
}

// Problem is a finding recorded on a node by its check. Problems are never
// returned as errors.
type Problem interface {
	Source() Node
	Kind() ProblemKind
	Message() string
}

// Solver is implemented by problems that can repair themselves. TrySolve
// runs on the scheduler and reports whether the problem is gone.
type Solver interface {
	TrySolve() bool
}

// FileMissingProblem is raised when a node's backing file does not exist
type FileMissingProblem struct {
	source Node
	Path   string
}

func (p *FileMissingProblem) Source() Node      { return p.source }
func (p *FileMissingProblem) Kind() ProblemKind { return ProblemFileMissing }
func (p *FileMissingProblem) Message() string {
	return fmt.Sprintf("file not found: %s", p.Path)
}

// PublishedFileDetailsProblem is raised when the workshop details cannot be
// fetched. InvalidID separates unknown ids from transient failures.
type PublishedFileDetailsProblem struct {
	source    Node
	InvalidID bool
	Err       error
}

func (p *PublishedFileDetailsProblem) Source() Node      { return p.source }
func (p *PublishedFileDetailsProblem) Kind() ProblemKind { return ProblemPublishedFileDetails }
func (p *PublishedFileDetailsProblem) Message() string {
	if p.InvalidID {
		return "invalid published file id"
	}
	return fmt.Sprintf("failed to get published file details: %v", p.Err)
}

// UnresolvedPackageProblem is raised when a workshop node has no package
// file after its check
type UnresolvedPackageProblem struct {
	source Node
}

func (p *UnresolvedPackageProblem) Source() Node      { return p.source }
func (p *UnresolvedPackageProblem) Kind() ProblemKind { return ProblemUnresolvedPackage }
func (p *UnresolvedPackageProblem) Message() string   { return "package file is not resolved" }

// DownloadFailedProblem records a failed package download
type DownloadFailedProblem struct {
	source   Node
	URL      string
	FilePath string
	Err      error
}

func (p *DownloadFailedProblem) Source() Node      { return p.source }
func (p *DownloadFailedProblem) Kind() ProblemKind { return ProblemDownloadFailed }
func (p *DownloadFailedProblem) Message() string {
	return fmt.Sprintf("download of %s failed: %v", p.URL, p.Err)
}

// EnableStrategyProblem is raised when a group's flags break its strategy
type EnableStrategyProblem struct {
	group *Group
}

func (p *EnableStrategyProblem) Source() Node      { return p.group }
func (p *EnableStrategyProblem) Kind() ProblemKind { return ProblemEnableStrategy }
func (p *EnableStrategyProblem) Message() string {
	return fmt.Sprintf("enabled children do not match the %s strategy", p.group.strategy)
}

func (p *EnableStrategyProblem) TrySolve() bool {
	if !p.group.valid {
		return false
	}
	return p.group.repairEnableStrategy()
}

// ChildrenProblem marks a group with at least one child that has problems
type ChildrenProblem struct {
	group *Group
}

func (p *ChildrenProblem) Source() Node      { return p.group }
func (p *ChildrenProblem) Kind() ProblemKind { return ProblemChildren }
func (p *ChildrenProblem) Message() string   { return "some children have problems" }

// InvalidVpkProblem is raised when a package file cannot be read as a VPK
type InvalidVpkProblem struct {
	source Node
	Path   string
	Err    error
}

func (p *InvalidVpkProblem) Source() Node      { return p.source }
func (p *InvalidVpkProblem) Kind() ProblemKind { return ProblemInvalidVpk }
func (p *InvalidVpkProblem) Message() string {
	return fmt.Sprintf("invalid vpk %s: %v", p.Path, p.Err)
}
