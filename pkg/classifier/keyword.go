package classifier

import (
	"biblo-chat-be/pkg/store"
	"context"
	"strings"
)

var defaultLibraryTerms = []string{
	"도서관", "대출", "반납", "연체", "열람실", "스터디룸", "자료", "도서", "책", "운영시간", "학위논문",
	"library", "book", "loan", "borrow", "return", "overdue",
}

// KeywordClassifier is the offline fallback: any library term routes to the
// library domain, everything else is a company question.
type KeywordClassifier struct {
	libraryTerms []string
}

var _ Classifier = &KeywordClassifier{}

func NewKeywordClassifier(extraTerms ...string) *KeywordClassifier {
	terms := make([]string, 0, len(defaultLibraryTerms)+len(extraTerms))
	for _, t := range append(defaultLibraryTerms, extraTerms...) {
		terms = append(terms, strings.ToLower(t))
	}
	return &KeywordClassifier{libraryTerms: terms}
}

func (k *KeywordClassifier) Classify(ctx context.Context, prompt string) (store.Domain, error) {
	if strings.TrimSpace(prompt) == "" {
		return 0, ErrEmptyPrompt
	}

	lower := strings.ToLower(prompt)
	for _, term := range k.libraryTerms {
		if strings.Contains(lower, term) {
			return store.DomainLibrary, nil
		}
	}
	return store.DomainCompany, nil
}
