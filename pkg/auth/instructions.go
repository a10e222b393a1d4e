package auth

import (
	"fmt"
	"io"
	"strings"
)

type cookieGuide struct {
	site   string
	cookie string
	looks  string
}

var guides = map[string]cookieGuide{
	"fanbox": {
		site:   "https://www.fanbox.cc",
		cookie: "FANBOXSESSID",
		looks:  "digits, an underscore, then a long random string",
	},
	"patreon": {
		site:   "https://www.patreon.com",
		cookie: "session_id",
		looks:  "a long random string of letters, digits, - and _",
	},
}

// ShowCookieExtractionGuide writes step-by-step instructions for copying
// a platform's session cookie out of the browser
func ShowCookieExtractionGuide(w io.Writer, platform string) {
	g, ok := guides[platform]
	if !ok {
		fmt.Fprintf(w, "No guide for platform %q\n", platform)
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "📚 %s SESSION COOKIE GUIDE\n", strings.ToUpper(platform))
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "The archiver reads the API with your browser session.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🌐 STEP 1: Log in")
	fmt.Fprintf(w, "   - Open %s and log in\n", g.site)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔧 STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   • Safari: enable the Develop menu in Preferences, then Cmd+Option+I")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🍪 STEP 3: Find the cookie")
	fmt.Fprintln(w, "   1. Open the 'Application' tab (Chrome) or 'Storage' tab (Firefox)")
	fmt.Fprintf(w, "   2. Expand 'Cookies' and select %s\n", g.site)
	fmt.Fprintf(w, "   3. Copy the value of %s (%s)\n", g.cookie, g.looks)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💡 TIPS:")
	fmt.Fprintln(w, "   • Copy the whole value, without quotes or semicolons")
	fmt.Fprintf(w, "   • Pasting \"%s=...\" works too\n", g.cookie)
	fmt.Fprintln(w, "   • Sessions expire; run `archivist auth login` again when a sync reports an auth error")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  SECURITY WARNING:")
	fmt.Fprintln(w, "   • The cookie gives full access to your account; never share it")
	fmt.Fprintln(w, "   • It is stored in the system keychain or an encrypted file")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide(w io.Writer, platform string) {
	g, ok := guides[platform]
	if !ok {
		return
	}
	fmt.Fprintf(w, "\n🍪 Quick Guide: F12 → Application → Cookies → %s → %s\n", g.site, g.cookie)
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
