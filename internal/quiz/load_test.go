package quiz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	t.Setenv("QUIZ_FILE", "")
	quizzes, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, quizzes)
	for _, q := range quizzes {
		assert.NoError(t, validate(&q))
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"mini","title":"Mini","questions":[
			{"id":"m1","text":"?","options":["a","b"],"answer":1,"points":5}
		]}
	]`), 0o644))
	t.Setenv("QUIZ_FILE", path)

	quizzes, err := Load()
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, "mini", quizzes[0].ID)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing title":    `[{"id":"x","questions":[{"id":"a","options":["a","b"],"answer":0,"points":1}]}]`,
		"no questions":     `[{"id":"x","title":"X","questions":[]}]`,
		"one option":       `[{"id":"x","title":"X","questions":[{"id":"a","options":["a"],"answer":0,"points":1}]}]`,
		"answer range":     `[{"id":"x","title":"X","questions":[{"id":"a","options":["a","b"],"answer":2,"points":1}]}]`,
		"zero points":      `[{"id":"x","title":"X","questions":[{"id":"a","options":["a","b"],"answer":0,"points":0}]}]`,
		"duplicate ids":    `[{"id":"x","title":"X","questions":[{"id":"a","options":["a","b"],"answer":0,"points":1},{"id":"a","options":["a","b"],"answer":0,"points":1}]}]`,
		"empty list":       `[]`,
		"malformed":        `{not json`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quizzes.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			t.Setenv("QUIZ_FILE", path)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestIsCorrect(t *testing.T) {
	q := Question{Options: []string{"a", "b", "c"}, Answer: 1}
	assert.True(t, q.IsCorrect(1))
	assert.False(t, q.IsCorrect(0))
	assert.False(t, q.IsCorrect(-1))
	assert.False(t, q.IsCorrect(3))
}
