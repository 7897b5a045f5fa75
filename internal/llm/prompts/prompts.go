package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

const maxAnswerRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Variant selects how generously checkpoints are marked as hit.
type Variant string

const (
	// Strict only accepts explicit, correct statements.
	Strict Variant = "strict"
	// Standard is the default.
	Standard Variant = "standard"
	// Lenient accepts brief or loosely worded mentions.
	Lenient Variant = "lenient"
)

var variants = []Variant{Strict, Standard, Lenient}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// CheckData holds template data for checkpoint prompts.
type CheckData struct {
	Checkpoints []string
	Answer      string
}

func load() error {
	loadOnce.Do(func() {
		funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
		templates = make(map[Variant]*template.Template, len(variants))
		for _, v := range variants {
			name := "templates/check_" + string(v) + ".txt"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Funcs(funcs).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildCheckPrompt renders the checkpoint grading prompt for an answer.
func BuildCheckPrompt(variant Variant, answer string, checkpoints []string) (string, error) {
	if err := load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, CheckData{
		Checkpoints: checkpoints,
		Answer:      sanitizeAnswer(answer),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
