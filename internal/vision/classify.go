package vision

import "strings"

// Category is the kind of content a screenshot shows.
type Category string

const (
	CategoryCode     Category = "code"
	CategoryBrowser  Category = "browser"
	CategoryGame     Category = "game"
	CategoryTerminal Category = "terminal"
	CategoryDocument Category = "document"
	CategoryGeneral  Category = "general"
)

// Categories lists the keyword categories in tie-break priority order.
var Categories = []Category{CategoryCode, CategoryBrowser, CategoryGame, CategoryTerminal, CategoryDocument}

var keywords = map[Category][]string{
	CategoryCode: {
		"code", "programming", "programmier", "entwicklungsumgebung", "editor",
		"code editor", "entwickler", "python", "javascript", "java", "c++", "html",
		"css", "ide", "visual studio", "intellij", "github", "git", "repository",
	},
	CategoryBrowser: {
		"browser", "website", "webpage", "web page", "web-site", "webseite",
		"firefox", "chrome", "edge", "safari", "internet explorer", "url",
		"http", "https", "web browser", "online", "internet",
	},
	CategoryGame: {
		"game", "gaming", "playing", "spiel", "videospiel", "spielen", "videogame",
		"game character", "player", "level", "quest", "npc", "character", "console",
		"playstation", "xbox", "nintendo", "mission", "achievement",
	},
	CategoryTerminal: {
		"terminal", "console", "konsole", "command line", "kommandozeile", "shell",
		"bash", "ubuntu", "linux", "powershell", "cmd", "command prompt", "ssh",
		"unix", "cli", "befehlszeile", "terminal emulator",
	},
	CategoryDocument: {
		"document", "dokument", "text", "word", "textdatei", "spreadsheet",
		"tabelle", "präsentation", "excel", "powerpoint", "pdf", "doc", "docx",
		"brief", "artikel", "bericht", "report", "paper", "formular",
	},
}

// Scores counts, per category, how many of its keywords occur in the
// description. Matching is case-insensitive substring matching.
func Scores(description string) map[Category]int {
	d := strings.ToLower(description)
	out := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		n := 0
		for _, kw := range keywords[c] {
			if strings.Contains(d, kw) {
				n++
			}
		}
		out[c] = n
	}
	return out
}

// Classify picks the category with the most keyword hits. Ties go to the
// category listed first in Categories; no hits at all is CategoryGeneral.
func Classify(description string) Category {
	scores := Scores(description)
	best, bestN := CategoryGeneral, 0
	for _, c := range Categories {
		if scores[c] > bestN {
			best, bestN = c, scores[c]
		}
	}
	return best
}
