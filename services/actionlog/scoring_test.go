package actionlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectPhoto(t *testing.T) {
	cases := []struct {
		name        string
		attachments []Attachment
		expected    string
	}{
		{name: "none", expected: ""},
		{name: "text only", attachments: []Attachment{{Type: "file", URL: "https://x/doc.pdf"}}, expected: ""},
		{name: "type image", attachments: []Attachment{{Type: "IMAGE", URL: "https://x/a.jpg"}}, expected: "https://x/a.jpg"},
		{name: "mime image", attachments: []Attachment{{Mime: "image/png", FileURL: "https://x/b.png"}}, expected: "https://x/b.png"},
		{name: "url wins over fileUrl", attachments: []Attachment{{Type: "image", URL: "u", FileURL: "f"}}, expected: "u"},
		{
			name: "first image wins",
			attachments: []Attachment{
				{Type: "audio", URL: "https://x/a.ogg"},
				{Type: "image", URL: "https://x/1.jpg"},
				{Type: "image", URL: "https://x/2.jpg"},
			},
			expected: "https://x/1.jpg",
		},
		{name: "image without url", attachments: []Attachment{{Type: "image"}}, expected: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, DetectPhoto(tc.attachments))
		})
	}
}

func TestComputeAward(t *testing.T) {
	require.Equal(t, 5, ComputeAward(false))
	require.Equal(t, 7, ComputeAward(true))
}
