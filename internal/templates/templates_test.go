package templates

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	"testing"
)

func TestLoadTemplatesDefinesLayoutBlocks(t *testing.T) {
	tmpl := loadTemplates(t)

	pages := map[string]*template.Template{
		"linking":     tmpl.linking,
		"device link": tmpl.deviceLink,
		"error":       tmpl.error,
	}
	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			defined := page.DefinedTemplates()
			for _, block := range []string{`"layout"`, `"title"`, `"content"`} {
				if !strings.Contains(defined, block) {
					t.Errorf("%s page does not define %s: %s", name, block, defined)
				}
			}
		})
	}
}

func TestTemplateErrorWrapsCause(t *testing.T) {
	cause := errors.New("executing \"content\": nil pointer")
	err := fmt.Errorf("rendering linking page: %w", &TemplateError{Message: "failed to render template", Cause: cause})

	var te *TemplateError
	if !errors.As(err, &te) {
		t.Fatalf("errors.As() found no *TemplateError in %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through errors.Is")
	}
	want := `template error: failed to render template: executing "content": nil pointer`
	if got := te.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
