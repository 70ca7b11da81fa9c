package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const asciiLogo = `
 _                                       _
| | ___  __ _  __ _ _   _  ___ _ __ ___ (_)_ __ _ __ ___  _ __
| |/ _ \/ _` + "`" + ` |/ _` + "`" + ` | | | |/ _ \ '_ ` + "`" + ` _ \| | '__| '__/ _ \| '__|
| |  __/ (_| | (_| | |_| |  __/ | | | | | | |  | | | (_) | |
|_|\___|\__,_|\__, |\__,_|\___|_| |_| |_|_|_|  |_|  \___/|_|
              |___/`

var logoStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("63")).
	Bold(true)

// PrintLogo prints the leaguemirror ASCII art logo
func PrintLogo() {
	fmt.Print("\n" + logoStyle.Render(asciiLogo) + "\n\n")
}
