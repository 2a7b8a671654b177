package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  https://www.reddit.com/  ", "https://www.reddit.com/"},
		{"https://www.reddit.com,", "https://www.reddit.com"},
		{"[feed](https://www.youtube.com/feed)", "https://www.youtube.com/feed"},
		{"<https://www.bbc.co.uk>", "https://www.bbc.co.uk"},
		{`"https://www.bbc.com/news".`, "https://www.bbc.com/news"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}
}

func TestSanitizeAndValidateURLs(t *testing.T) {
	valid, invalid := SanitizeAndValidateURLs([]string{
		"https://www.reddit.com/r/news",
		"http://localhost:8080/page",
		"ftp://example.com",
		"https://exa mple.com",
		"",
		"https://example.com{}",
	})

	assert.Equal(t, []string{"https://www.reddit.com/r/news", "http://localhost:8080/page"}, valid)
	assert.Len(t, invalid, 4)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Nil(t, SplitList(""))
}
