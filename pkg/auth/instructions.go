package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAppSetupGuide explains how to obtain the Reddit script app credentials
// and the Vision API key
func ShowAppSetupGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "FRIENDBOT CREDENTIAL SETUP")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Create a Reddit script app")
	fmt.Fprintln(w, "   - Log in as the bot account and open https://www.reddit.com/prefs/apps")
	fmt.Fprintln(w, "   - Click 'create another app', choose type 'script'")
	fmt.Fprintln(w, "   - Any redirect URI works, e.g. http://localhost:8080")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Copy the app credentials")
	fmt.Fprintln(w, "   - Client ID: the string under the app name")
	fmt.Fprintln(w, "   - Client secret: the 'secret' field")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Create a Google Cloud Vision API key")
	fmt.Fprintln(w, "   - Enable the Cloud Vision API in a Google Cloud project")
	fmt.Fprintln(w, "   - APIs & Services > Credentials > Create credentials > API key")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The password, client secret and API key are stored encrypted and")
	fmt.Fprintln(w, "never written to the config file.")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
