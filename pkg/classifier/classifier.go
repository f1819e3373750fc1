package classifier

import (
	"biblo-chat-be/pkg/store"
	"context"
	"errors"
)

var ErrEmptyPrompt = errors.New("classifier: empty prompt")

// Classifier routes a prompt to one of the knowledge domains.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (store.Domain, error)
}

// LabelDomains maps the fine-tuned model's output labels onto domains.
var LabelDomains = map[string]store.Domain{
	"LABEL_0": store.DomainCompany,
	"LABEL_1": store.DomainLibrary,
	"0":       store.DomainCompany,
	"1":       store.DomainLibrary,
	"company": store.DomainCompany,
	"library": store.DomainLibrary,
}
