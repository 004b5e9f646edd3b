package mail

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// Templates renders plain-text message bodies from files in a directory.
type Templates struct {
	dir string
}

func NewTemplates(dir string) *Templates {
	return &Templates{dir: dir}
}

// Render loads the named template and executes it with vars. The name is a
// bare filename; path traversal out of the template dir is rejected.
func (t *Templates) Render(name string, vars map[string]any) (string, error) {
	if t == nil || t.dir == "" {
		return "", fmt.Errorf("no template directory configured")
	}
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid template name %q", name)
	}

	tpl, err := template.ParseFiles(filepath.Join(t.dir, name))
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tpl.Execute(&out, vars); err != nil {
		return "", err
	}
	return out.String(), nil
}
