package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_RemovesAllHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "script tag", input: `Hello <script>alert('xss')</script> World`, expected: `Hello  World`},
		{name: "inline event handler", input: `<div onclick="alert('xss')">Click me</div>`, expected: `Click me`},
		{name: "mixed tags", input: `<b>Bold</b> <i>Italic</i>`, expected: `Bold Italic`},
		{name: "image with onerror", input: `<img src=x onerror="alert('xss')">`, expected: ``},
		{name: "surrounding whitespace", input: "  Range day  ", expected: `Range day`},
		{name: "plain text unchanged", input: `Morning briefing`, expected: `Morning briefing`},
		{name: "empty", input: ``, expected: ``},
		{name: "ampersand and apostrophe", input: `Alice's squad & friends`, expected: `Alice's squad & friends`},
		{name: "comparison and quotes", input: `5 > 3 "quoted"`, expected: `5 > 3 "quoted"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestHTML_AllowsSafeFormatting(t *testing.T) {
	assert.Equal(t, `<p>Join the <b>agency</b></p>`, HTML(`<p>Join the <b>agency</b></p>`))
	assert.Equal(t, `<p>Hi</p>`, HTML(`<p onclick="steal()">Hi</p><script>alert(1)</script>`))
	assert.NotContains(t, HTML(`<a href="javascript:alert(1)">x</a>`), "javascript:")
}
