package groups

import (
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength        = 64
	maxTitleLength       = 128
	maxDescriptionLength = 1024
	maxTermLength        = 32
	maxOptionLength      = 256
	minPasswordLength    = 6
	maxMessageLength     = 4096
)

type validator struct {
	problems []FieldProblem
}

func (v *validator) add(field string, kind ValidationKind) {
	v.problems = append(v.problems, FieldProblem{Field: field, Kind: kind})
}

func (v *validator) required(field, value string, max int) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		v.add(field, ValidationMissing)
	case utf8.RuneCountInString(value) > max:
		v.add(field, ValidationTooLong)
	}
}

func (v *validator) optional(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.add(field, ValidationTooLong)
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

func ValidateNewGroup(g NewGroup) error {
	var v validator
	v.required("name", g.Name, maxNameLength)
	v.optional("description", g.Description, maxDescriptionLength)
	v.required("term", g.Term, maxTermLength)
	if utf8.RuneCountInString(g.Password) < minPasswordLength {
		v.add("password", ValidationTooShort)
	}
	return v.err()
}

func ValidateGroupChanges(c GroupChanges) error {
	var v validator
	if c.Name != "" {
		v.required("name", c.Name, maxNameLength)
	}
	v.optional("description", c.Description, maxDescriptionLength)
	if c.Term != "" {
		v.required("term", c.Term, maxTermLength)
	}
	if c.Password != "" && utf8.RuneCountInString(c.Password) < minPasswordLength {
		v.add("password", ValidationTooShort)
	}
	if c.AdminID < 0 {
		v.add("admin", ValidationInvalid)
	}
	return v.err()
}

func ValidateConversation(c *Conversation) error {
	var v validator
	v.required("title", c.Title, maxTitleLength)
	return v.err()
}

func ValidateMessageText(text string) error {
	var v validator
	v.required("text", text, maxMessageLength)
	return v.err()
}

// ValidateBallot checks user input for a new or edited ballot. Option texts
// must be unique since edits match options by text.
func ValidateBallot(b *Ballot) error {
	var v validator
	v.required("title", b.Title, maxTitleLength)
	v.optional("description", b.Description, maxDescriptionLength)
	if len(b.Options) == 0 {
		v.add("options", ValidationMissing)
	}
	seen := make(map[string]struct{}, len(b.Options))
	for _, o := range b.Options {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			v.add("options", ValidationMissing)
			continue
		}
		if utf8.RuneCountInString(text) > maxOptionLength {
			v.add("options", ValidationTooLong)
		}
		if _, dup := seen[text]; dup {
			v.add("options", ValidationInvalid)
		}
		seen[text] = struct{}{}
	}
	return v.err()
}
