package commands

import (
	"fmt"

	"zephyrbot/internal/vision"
)

// SystemPrompt is sent with every text generation request.
func SystemPrompt(bot string) string {
	return fmt.Sprintf("Du bist ein hilfreicher Twitch-Bot namens %s. Antworte immer auf Deutsch, kurz und prägnant.", bot)
}

const jokePrompt = "Erzähle einen kurzen, lustigen Witz. Mach ihn besonders humorvoll."

func questionPrompt(bot, user, message string) string {
	return fmt.Sprintf("Du bist ein Twitch-Bot namens %s. Der Benutzer %s hat dich folgendes gefragt: '%s'. Gib eine kurze, hilfreiche Antwort (max. 200 Zeichen).", bot, user, message)
}

func directQuestionPrompt(bot, user, question string) string {
	return fmt.Sprintf("Du bist ein Twitch-Bot namens %s. Beantworte folgende Frage von %s direkt und präzise (max. 250 Zeichen): '%s'.", bot, user, question)
}

func gameCommentPrompt(bot, game, location string) string {
	return fmt.Sprintf("Du bist ein Twitch-Bot namens %s. Der Streamer spielt gerade %s und befindet sich in/bei %s. Gib einen kurzen, lustigen und hilfreichen Spielkommentar ab (max. 200 Zeichen).", bot, game, location)
}

var categoryIntro = map[vision.Category]string{
	vision.CategoryCode:     "Ein KI-Vision-Modell hat auf einem Screenshot Code oder eine Programmierumgebung erkannt:",
	vision.CategoryBrowser:  "Ein KI-Vision-Modell hat auf einem Screenshot einen Browser oder eine Website erkannt:",
	vision.CategoryGame:     "Ein KI-Vision-Modell hat auf einem Screenshot ein Videospiel erkannt:",
	vision.CategoryTerminal: "Ein KI-Vision-Modell hat auf einem Screenshot ein Terminal oder eine Konsole erkannt:",
	vision.CategoryDocument: "Ein KI-Vision-Modell hat auf einem Screenshot ein Textdokument erkannt:",
	vision.CategoryGeneral:  "Ein KI-Vision-Modell hat Folgendes auf einem Screenshot erkannt:",
}

var categoryAsk = map[vision.Category]string{
	vision.CategoryCode:     "Formuliere als Twitch-Bot %s eine witzige, knackige Antwort über diesen Code oder diese Programmierumgebung.\nMach einen coolen, lockeren Spruch, der für Programmierer witzig ist.",
	vision.CategoryBrowser:  "Formuliere als Twitch-Bot %s eine witzige, knackige Antwort über diesen Webinhalt.\nMach einen coolen, lockeren Spruch über das, was im Browser zu sehen ist.",
	vision.CategoryGame:     "Formuliere als Twitch-Bot %s eine witzige, knackige Twitch-Antwort zum aktuellen Spielgeschehen.\nSprich wie ein Gamer und sei unterhaltsam.",
	vision.CategoryTerminal: "Formuliere als Twitch-Bot %s eine witzige, knackige Antwort über diese Terminal-Session.\nMach einen coolen Spruch für Linux/Shell-Enthusiasten.",
	vision.CategoryDocument: "Formuliere als Twitch-Bot %s eine witzige, knackige Antwort über dieses Dokument.\nSei kreativ und unterhaltsam bezüglich des Textinhalts.",
	vision.CategoryGeneral:  "Formuliere als Chat-Bot %s eine knackige, witzige Twitch-Antwort zum aktuellen Inhalt.\nSei unterhaltsam und originell.",
}

// CategoryPrompt asks for a comment on a described screenshot.
func CategoryPrompt(bot string, c vision.Category, description string) string {
	intro, ok := categoryIntro[c]
	if !ok {
		c = vision.CategoryGeneral
		intro = categoryIntro[c]
	}
	ask := fmt.Sprintf(categoryAsk[c], bot)
	return fmt.Sprintf("%s\n%q\n\n%s Maximal 2 Sätze. Deutsch.", intro, description, ask)
}
