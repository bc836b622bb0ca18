package domain

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrEmptyContent   = errors.New("message content is empty")
	ErrContentTooLong = errors.New("message content is too long")
	ErrEmptyQuestion  = errors.New("assistant question is empty")
)

// MaxContentLength bounds message content in characters.
const MaxContentLength = 4000

// CheckContent rejects blank content and content over MaxContentLength.
func CheckContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// DefaultAssistantTag invokes the assistant when it prefixes a message.
const DefaultAssistantTag = "@assistant"

type IntentKind int

const (
	IntentPlain IntentKind = iota
	IntentAssistantQuery
)

func (k IntentKind) String() string {
	switch k {
	case IntentPlain:
		return "plain"
	case IntentAssistantQuery:
		return "assistant_query"
	default:
		return "unknown"
	}
}

// Intent is the parsed shape of a send. Raw is what gets stored and shown;
// Text is the plain body or, for assistant queries, the question with the
// tag stripped.
type Intent struct {
	Kind IntentKind
	Raw  string
	Text string
}

// IntentParser recognizes the assistant tag.
type IntentParser struct {
	tag string
}

func NewIntentParser(tag string) IntentParser {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = DefaultAssistantTag
	}
	return IntentParser{tag: strings.ToLower(tag)}
}

// Parse classifies content. The tag matches case-insensitively after leading
// whitespace and must be followed by whitespace or the end of the content.
func (p IntentParser) Parse(content string) (Intent, error) {
	if strings.TrimSpace(content) == "" {
		return Intent{}, ErrEmptyContent
	}

	trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
	if len(trimmed) < len(p.tag) || !strings.EqualFold(trimmed[:len(p.tag)], p.tag) {
		return Intent{Kind: IntentPlain, Raw: content, Text: content}, nil
	}

	rest := trimmed[len(p.tag):]
	if rest != "" {
		r, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsSpace(r) {
			return Intent{Kind: IntentPlain, Raw: content, Text: content}, nil
		}
	}

	question := strings.TrimSpace(rest)
	if question == "" {
		return Intent{}, ErrEmptyQuestion
	}
	return Intent{Kind: IntentAssistantQuery, Raw: content, Text: question}, nil
}

// IsAssistantQuery reports whether content would invoke the assistant.
func (p IntentParser) IsAssistantQuery(content string) bool {
	intent, err := p.Parse(content)
	return err == nil && intent.Kind == IntentAssistantQuery
}
