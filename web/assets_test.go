package web

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formInput struct {
	Title       string
	Description string
	Priority    int
}

func TestTemplatesParse(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{"todos.html", "add-todo.html", "edit-todo.html", "login.html", "register.html", "error.html"} {
		assert.NotNil(t, tmpl.Lookup(name), "missing template %s", name)
	}
}

func TestAddTodoTemplateRendersPriorityOptions(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = tmpl.ExecuteTemplate(&buf, "add-todo.html", map[string]any{
		"form":        formInput{Priority: 3},
		"minPriority": 1,
		"maxPriority": 5,
		"csrf":        "token-123",
	})
	require.NoError(t, err)

	body := buf.String()
	assert.Contains(t, body, `action="/todos/add-todo"`)
	assert.Contains(t, body, `<option value="3" selected>3</option>`)
	assert.Contains(t, body, `value="token-123"`)
}

func TestSeq(t *testing.T) {
	seq := funcs["seq"].(func(int, int) []int)
	assert.Equal(t, []int{1, 2, 3}, seq(1, 3))
	assert.Nil(t, seq(3, 1))
}
