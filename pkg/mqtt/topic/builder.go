package topic

import (
	"fmt"
)

// Builder constructs topic strings of the form {root}/{segment}/{id}.
type Builder struct {
	root  string
	group string
}

// NewBuilder creates a Builder rooted at root, e.g. "opsdeck/v1".
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Shared returns a copy whose filters are prefixed with $share/{group}/.
func (b *Builder) Shared(group string) *Builder {
	return &Builder{root: b.root, group: group}
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return b.prefix() + fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// BuildWildcard returns {root}/{segment}/+ for subscribing across all ids.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// BuildAll returns {root}/{segment}/# which also matches nested levels.
func (b *Builder) BuildAll(segment string) string {
	return b.Build(segment, MultiWildcard)
}

func (b *Builder) prefix() string {
	if b.group == "" {
		return ""
	}
	return "$share/" + b.group + "/"
}
