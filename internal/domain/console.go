package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ansiRe matches ANSI escape sequences that mcrcon adds to server output.
var ansiRe = regexp.MustCompile(`(?:\x1B[@-_]|[\x80-\x9F])[0-?]*[ -/]*[@-~]`)

// consoleNoise lists server messages that leak into command output when
// other tools share the console.
var consoleNoise = []string{
	"Automatic saving is now disabled",
	"Automatic saving is now enabled",
	"Saved the game",
}

// WeatherCommand builds the Minecraft console command that applies s for
// the given number of seconds, e.g. "weather rain 3600".
func WeatherCommand(s SyncState, seconds int) string {
	return fmt.Sprintf("weather %s %d", s.ApplyAction(), seconds)
}

// CleanConsoleOutput strips ANSI sequences and noise lines from console
// output and trims surrounding whitespace.
func CleanConsoleOutput(out string) string {
	out = ansiRe.ReplaceAllString(out, "")
	for _, noise := range consoleNoise {
		out = strings.ReplaceAll(out, noise, "")
	}

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
