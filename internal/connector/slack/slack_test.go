package slackconn

import "testing"

func TestMarkdownToMrkdwn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "**Ticket #7** claimed", "*Ticket #7* claimed"},
		{"italic", "filed for *Steam Engine*", "filed for _Steam Engine_"},
		{"link", "see [the runbook](https://example.com)", "see <https://example.com|the runbook>"},
		{"code untouched", "run `fixbotctl health` now", "run `fixbotctl health` now"},
		{"asterisk in code", "glob is `*.db` here", "glob is `*.db` here"},
		{"plain", "nothing special", "nothing special"},
		{"bare bracket", "checklist [1 of 3]", "checklist [1 of 3]"},
		{"mixed", "**#3** done by *@vera*", "*#3* done by _@vera_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkdownToMrkdwn(tt.in); got != tt.want {
				t.Errorf("MarkdownToMrkdwn(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error without bot token")
	}
}
