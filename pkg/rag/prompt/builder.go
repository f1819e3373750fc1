package prompt

import (
	"strings"

	"biblo-chat-be/internal/constant"
	"biblo-chat-be/pkg/llm"
	"biblo-chat-be/pkg/store"
)

// Builder renders the per-domain instruction template.
type Builder struct {
	templates map[store.Domain]string
}

func NewBuilder() *Builder {
	return &Builder{
		templates: map[store.Domain]string{
			store.DomainCompany: constant.CompanyPromptV1,
			store.DomainLibrary: constant.LibraryPromptV1,
		},
	}
}

// WithTemplate overrides the template of one domain.
func (b *Builder) WithTemplate(domain store.Domain, tmpl string) *Builder {
	b.templates[domain] = tmpl
	return b
}

// Build substitutes query, context and history in a single pass so that
// placeholder-looking text inside user input is left alone.
func (b *Builder) Build(domain store.Domain, query, context, history string) string {
	tmpl, ok := b.templates[domain]
	if !ok {
		tmpl = b.templates[store.DomainCompany]
	}

	r := strings.NewReplacer(
		constant.PlaceholderQuery, query,
		constant.PlaceholderContext, context,
		constant.PlaceholderHistory, history,
	)
	return r.Replace(tmpl)
}

// Messages wraps the rendered prompt as the single user turn sent to the model.
func (b *Builder) Messages(domain store.Domain, query, context, history string) []llm.Message {
	return []llm.Message{
		{Role: constant.ChatMessageRoleUser, Content: b.Build(domain, query, context, history)},
	}
}
