// ABOUTME: Icon system with Nerd Font detection and Unicode fallback
// ABOUTME: Provides consistent iconography across different terminal capabilities

package icons

import (
	"os"
	"strings"
	"sync"
)

var (
	useNerdFonts     bool
	nerdFontDetected sync.Once
)

// detectNerdFonts checks if Nerd Fonts should be used
func detectNerdFonts() bool {
	if env := os.Getenv("FLEET_NERD_FONTS"); env != "" {
		return env == "1" || strings.ToLower(env) == "true"
	}

	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	for _, t := range []string{"iTerm.app", "alacritty", "WezTerm", "kitty", "ghostty"} {
		if strings.Contains(termProgram, t) || strings.Contains(term, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// HasNerdFonts returns true if Nerd Fonts are available
func HasNerdFonts() bool {
	nerdFontDetected.Do(func() {
		useNerdFonts = detectNerdFonts()
	})
	return useNerdFonts
}

// Icon represents an icon with Nerd Font and Unicode fallback variants
type Icon struct {
	NerdFont string
	Fallback string
}

// String returns the appropriate icon based on font availability
func (i Icon) String() string {
	if HasNerdFonts() {
		return i.NerdFont
	}
	return i.Fallback
}

var (
	// Session
	User    = Icon{"\uf007", "●"} // nf-fa-user
	Clock   = Icon{"\uf017", "◷"} // nf-fa-clock_o
	Key     = Icon{"\uf084", "⚿"} // nf-fa-key
	Lock    = Icon{"\uf023", "▣"} // nf-fa-lock
	Refresh = Icon{"\uf021", "↻"} // nf-fa-refresh

	// Status indicators
	CheckOK  = Icon{"\uf058", "✓"} // nf-fa-check_circle
	Warning  = Icon{"\uf071", "⚠"} // nf-fa-warning
	Critical = Icon{"\uf057", "✗"} // nf-fa-times_circle
	Info     = Icon{"\uf05a", "ℹ"} // nf-fa-info_circle
)
