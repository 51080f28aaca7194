// Package topics names the pub/sub channels that meeting events go out on.
package topics

import "strings"

const DefaultPrefix = "events"

type Topic struct {
	prefix string
	name   string
}

// New builds a topic under prefix. A trailing dot on prefix is ignored.
func New(prefix, name string) Topic {
	return Topic{
		prefix: strings.TrimSuffix(strings.TrimSpace(prefix), "."),
		name:   name,
	}
}

func (t Topic) FullName() string {
	if t.prefix == "" {
		return t.name
	}
	return t.prefix + "." + t.name
}

func (t Topic) Name() string {
	return t.name
}

// Pattern matches every topic under prefix, for PSUBSCRIBE.
func Pattern(prefix string) string {
	return New(prefix, "*").FullName()
}
