package ui

import "testing"

func TestNormalizeAccentColor(t *testing.T) {
	tests := map[string]struct {
		want string
		ok   bool
	}{
		"":        {"", false},
		"None":    {"", false},
		"off":     {"", false},
		"default": {"", false},
		"208":     {"208", true},
		" 12 ":    {"12", true},
		"256":     {"", false},
		"-4":      {"", false},
		"#C0FFEE": {"#c0ffee", true},
		"#f0a":    {"#ff00aa", true},
		"#12345":  {"", false},
		"#xyzxyz": {"", false},
		"purple":  {"", false},
	}
	for in, tt := range tests {
		got, ok := normalizeAccentColor(in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("normalizeAccentColor(%q) = %q, %v; want %q, %v", in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConfigureTheme(t *testing.T) {
	saved, savedBold, savedColor := Accent, AccentBold, accentColor
	t.Cleanup(func() { Accent, AccentBold, accentColor = saved, savedBold, savedColor })

	ConfigureTheme("")
	if got, ok := AccentColor(); !ok || got != defaultAccent {
		t.Errorf("empty accent changed the default: %q, %v", got, ok)
	}

	ConfigureTheme("#f0a")
	if got, ok := AccentColor(); !ok || got != "#ff00aa" {
		t.Errorf("AccentColor = %q, %v", got, ok)
	}

	ConfigureTheme("off")
	if _, ok := AccentColor(); ok {
		t.Error("accent still on after \"off\"")
	}
}
