package correlation

import "github.com/vilaca/alm-eventlog/internal/domain"

// Kind is an entity kind that owns a case-id prefix.
type Kind string

const (
	KindIssue    Kind = "issue"
	KindMR       Kind = "mr"
	KindPipeline Kind = "pipeline"
	KindCommit   Kind = "commit"
	KindBranch   Kind = "branch"
	KindRelease  Kind = "release"
)

// Kinds lists every kind that has a prefix.
var Kinds = []Kind{KindIssue, KindMR, KindPipeline, KindCommit, KindBranch, KindRelease}

// ActionPrefixKey is the Prefixes entry holding the action tag prefix.
const ActionPrefixKey = "action_prefix"

// Prefixes is a platform's prefix table: one entry per Kind plus ActionPrefixKey.
type Prefixes map[string]string

// For returns the prefix of kind, or "" when the table has no entry.
func (p Prefixes) For(kind Kind) string {
	return p[string(kind)]
}

// ActionPrefix returns the prefix applied to every action tag.
func (p Prefixes) ActionPrefix() string {
	return p[ActionPrefixKey]
}

// Merge returns a copy of p with every non-empty entry of override applied.
func (p Prefixes) Merge(override Prefixes) Prefixes {
	out := make(Prefixes, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

var defaultPrefixes = map[string]Prefixes{
	domain.PlatformGitLab: {
		"issue": "GLI", "mr": "MR", "pipeline": "GLPL", "commit": "GLC",
		"branch": "GLB", "release": "GLR", ActionPrefixKey: "gl",
	},
	domain.PlatformGitHub: {
		"issue": "GHI", "mr": "PR", "pipeline": "GHPL", "commit": "GHC",
		"branch": "GHB", "release": "GHR", ActionPrefixKey: "gh",
	},
	domain.PlatformAzure: {
		"issue": "AZI", "mr": "AZMR", "pipeline": "AZPL", "commit": "AZC",
		"branch": "AZB", "release": "AZR", ActionPrefixKey: "AZD",
	},
}

// DefaultPrefixes returns the built-in prefix table of a platform (empty if unknown).
func DefaultPrefixes(platform string) Prefixes {
	return Prefixes{}.Merge(defaultPrefixes[platform])
}

// CaseIDGenerator formats namespaced case identifiers and action tags.
type CaseIDGenerator struct {
	Namespace string
	Prefixes  Prefixes
}

// Generate returns "{prefix(kind)}-{namespace}-{value}". An unknown kind gets
// an empty prefix rather than an error.
func (g CaseIDGenerator) Generate(value string, kind Kind) string {
	return g.Prefixes.For(kind) + "-" + g.Namespace + "-" + value
}

// Action returns the action tag for suffix, e.g. "gl_MR_merged".
func (g CaseIDGenerator) Action(suffix string) string {
	if ap := g.Prefixes.ActionPrefix(); ap != "" {
		return ap + "_" + suffix
	}
	return suffix
}
