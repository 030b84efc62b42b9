package domain

import "testing"

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase passthrough", "fixauth", "fixauth"},
		{"mixed case", "FixAuth", "fixauth"},
		{"spaces become dashes", "fix auth bug", "fix-auth-bug"},
		{"runs collapse", "fix   auth!!bug", "fix-auth-bug"},
		{"leading trimmed", "  fix", "fix"},
		{"trailing trimmed", "fix!!", "fix"},
		{"digits kept", "issue 42", "issue-42"},
		{"unicode replaced", "café tülip", "caf-t-lip"},
		{"only symbols falls back", "!!!", "session"},
		{"empty falls back", "", "session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.input); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeNameIdempotent(t *testing.T) {
	inputs := []string{"Fix Auth", "a--b", "  weird!!name  ", "ALREADY-clean-1"}
	for _, in := range inputs {
		once := SanitizeName(in)
		if twice := SanitizeName(once); twice != once {
			t.Errorf("SanitizeName not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestBranchName(t *testing.T) {
	if got := BranchName("Fix Auth"); got != "wb/fix-auth" {
		t.Errorf("BranchName() = %q, want %q", got, "wb/fix-auth")
	}
}

func TestWorktreePath(t *testing.T) {
	tests := []struct {
		name string
		root string
		sess string
		want string
	}{
		{"plain", "/home/dev/proj", "Fix Auth", "/home/dev/proj-fix-auth"},
		{"trailing slash cleaned", "/home/dev/proj/", "fix", "/home/dev/proj-fix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WorktreePath(tt.root, tt.sess); got != tt.want {
				t.Errorf("WorktreePath(%q, %q) = %q, want %q", tt.root, tt.sess, got, tt.want)
			}
		})
	}
}

func TestRuntimeSessionNameRoundTrip(t *testing.T) {
	name := RuntimeSessionName("workbench", 7, "550e8400-e29b-41d4-a716-446655440000")
	want := "workbench-7-550e8400-e29b-41d4-a716-446655440000"
	if name != want {
		t.Fatalf("RuntimeSessionName() = %q, want %q", name, want)
	}

	projectID, sessionID, ok := ParseRuntimeSessionName("workbench", name)
	if !ok {
		t.Fatal("ParseRuntimeSessionName() ok = false, want true")
	}
	if projectID != 7 {
		t.Errorf("projectID = %d, want 7", projectID)
	}
	if sessionID != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("sessionID = %q, want the uuid", sessionID)
	}
}

func TestParseRuntimeSessionNameRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"wrong prefix", "tmux-7-abc"},
		{"no project id", "workbench-abc"},
		{"non-numeric project id", "workbench-x-abc"},
		{"empty session id", "workbench-7-"},
		{"bare prefix", "workbench"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := ParseRuntimeSessionName("workbench", tt.input); ok {
				t.Errorf("ParseRuntimeSessionName(%q) ok = true, want false", tt.input)
			}
		})
	}
}
