package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testData struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

func (d testData) RenderText(s Styles) string {
	return s.Fields(Field{"Name", d.Name}, Field{"Value", "42"})
}

type stringerData struct{}

func (stringerData) String() string { return "as string" }

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"yaml", false},
		{"text", false},
		{"", false},
		{"xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, err := NewFormatter(tt.format, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatters(t *testing.T) {
	data := testData{Name: "test", Value: 42}

	tests := []struct {
		format string
		want   []string
	}{
		{"json", []string{`"name": "test"`, `"value": 42`}},
		{"yaml", []string{"name: test", "value: 42"}},
		{"text", []string{"Name:  test", "Value: 42"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			f, err := NewFormatter(tt.format, &FormatterOptions{Writer: &buf, NoColor: true})
			require.NoError(t, err)
			require.NoError(t, f.Format(data))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestJSONFormatterCompact(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter("json", &FormatterOptions{Writer: &buf, Compact: true})
	require.NoError(t, err)
	require.NoError(t, f.Format(testData{Name: "a", Value: 1}))
	assert.Equal(t, `{"name":"a","value":1}`, strings.TrimSpace(buf.String()))
}

func TestTextFormatterInputs(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter("text", &FormatterOptions{Writer: &buf, NoColor: true})
	require.NoError(t, err)

	require.NoError(t, f.Format("plain"))
	require.NoError(t, f.Format(stringerData{}))
	assert.Equal(t, "plain\nas string\n", buf.String())

	assert.Error(t, f.Format(map[string]int{"a": 1}))
}
