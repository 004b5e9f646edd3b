package mail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRender(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Hello {{.Name}}, see you at {{.When}}."), 0o644))

	tpls := NewTemplates(dir)
	out, err := tpls.Render("greeting.tmpl", map[string]any{"Name": "Sam", "When": "noon"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Sam, see you at noon.", out)
}

func TestTemplateRejectsPathTraversal(t *testing.T) {
	tpls := NewTemplates(t.TempDir())

	_, err := tpls.Render("../secrets.tmpl", nil)
	assert.Error(t, err)
	_, err = tpls.Render("sub/dir.tmpl", nil)
	assert.Error(t, err)
}

func TestTemplateWithoutDirectory(t *testing.T) {
	var tpls *Templates
	_, err := tpls.Render("x.tmpl", nil)
	assert.Error(t, err)
}
