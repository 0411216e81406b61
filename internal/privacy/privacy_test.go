package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		masked string
		want   map[string]string
	}{
		{
			name:   "email",
			input:  "email me at jane.doe@example.com please",
			masked: "email me at [EMAIL_0] please",
			want:   map[string]string{"[EMAIL_0]": "jane.doe@example.com"},
		},
		{
			name:   "two emails number per kind",
			input:  "a@b.io and c@d.org",
			masked: "[EMAIL_0] and [EMAIL_1]",
			want:   map[string]string{"[EMAIL_0]": "a@b.io", "[EMAIL_1]": "c@d.org"},
		},
		{
			name:   "phone",
			input:  "call 555-123-4567 tomorrow",
			masked: "call [PHONE_0] tomorrow",
			want:   map[string]string{"[PHONE_0]": "555-123-4567"},
		},
		{
			name:   "address",
			input:  "meet at 42 Baker Street tonight",
			masked: "meet at [ADDR_0] tonight",
			want:   map[string]string{"[ADDR_0]": "42 Baker Street"},
		},
		{
			name:   "nothing to mask",
			input:  "went for a run",
			masked: "went for a run",
			want:   map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mask(tt.input)
			assert.Equal(t, tt.masked, got.Masked)
			assert.Equal(t, tt.want, got.ReplacementMap)
		})
	}
}

func TestMaskCardNumber(t *testing.T) {
	got := Mask("card 4111 1111 1111 1111 expires soon")
	assert.NotContains(t, got.Masked, "4111")
	for placeholder, original := range got.ReplacementMap {
		assert.Contains(t, got.Masked, placeholder)
		assert.NotEmpty(t, original)
	}
}

func TestMaskRoundTrip(t *testing.T) {
	inputs := []string{
		"email jane@example.com or call +1 555-123-4567",
		"ship to 12 Elm Road, then ping bob@work.co",
		"card 4111-1111-1111-1111",
		"no pii here",
	}
	for _, in := range inputs {
		r := Mask(in)
		assert.Equal(t, in, Unmask(r.Masked, r.ReplacementMap), in)
	}
}

func TestSummarizeRedactions(t *testing.T) {
	r := Mask("write to jane@example.com")
	assert.Equal(t, map[string]int{"[EMAIL_0]": len("jane@example.com")}, SummarizeRedactions(r.ReplacementMap))
}

func TestValidCard(t *testing.T) {
	assert.True(t, validCard("4111 1111 1111 1111"))
	assert.False(t, validCard("12345"))
	assert.False(t, validCard("1234 5678 9012 3456 7890 1"))
}

func TestStripPrivateTags(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		only  bool
	}{
		{name: "no tags", input: "plain text", want: "plain text"},
		{name: "inline", input: "before <private>secret</private> after", want: "before  after"},
		{name: "multiline", input: "<private>\nline\n</private>kept", want: "kept"},
		{name: "only private", input: " <private>a</private> <private>b</private> ", want: "", only: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripPrivateTags(tt.input))
			assert.Equal(t, tt.only, HasOnlyPrivateContent(tt.input))
		})
	}
}
