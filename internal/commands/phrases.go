package commands

import "zephyrbot/internal/vision"

// Fixed replies used whenever the language model gives nothing usable.

var Jokes = []string{
	"Warum können Skelette so schlecht lügen? Man sieht ihnen durch die Rippen!",
	"Was ist rot und schlecht für die Zähne? Ein Ziegelstein.",
	"Wie nennt man einen Cowboy ohne Pferd? Sattelschlepper.",
	"Warum sollte man nie Poker mit einem Zauberer spielen? Weil er Asse im Ärmel hat!",
	"Kommt ein Pferd in die Bar. Fragt der Barkeeper: 'Warum so ein langes Gesicht?'",
	"Was sagt ein Bauer, wenn er sein Traktor verloren hat? 'Wo ist mein Traktor?'",
	"Wie nennt man einen dicken Vegetarier? Biotonne.",
	"Wie nennt man einen Boomerang, der nicht zurückkommt? Stock.",
	"Was ist braun, klebrig und läuft durch die Wüste? Ein Karamel.",
	"Warum hat der Mathematiker seine Frau verlassen? Sie hat etwas mit X gemacht.",
	"Was ist grün und steht vor der Tür? Ein Klopfsalat!",
	"Was sitzt auf dem Baum und schreit 'Aha'? Ein Uhu mit Sprachfehler!",
	"Was ist schwarz-weiß und kommt nicht vom Fleck? Eine Zeitung!",
	"Was macht ein Pirat beim Camping? Er schlägt sein Segel auf!",
	"Treffen sich zwei Jäger im Wald. Beide tot.",
	"Was ist ein Keks unter einem Baum? Ein schattiges Plätzchen!",
	"Was passiert, wenn man Cola und Bier gleichzeitig trinkt? Man colabiert.",
	"Warum können Seeräuber schlecht mit Kreisen rechnen? Weil sie Pi raten.",
}

var GameComments = []string{
	"Dieser Boss sieht gefährlich aus! Pass auf die Angriffe auf!",
	"Nice! Das war ein guter Move!",
	"Oh, knapp vorbei! Beim nächsten Mal klappt's bestimmt.",
	"Die Grafik in diesem Spiel ist wirklich beeindruckend!",
	"Hast du schon alle Geheimnisse in diesem Level gefunden?",
	"Ich würde an deiner Stelle nach Heilung suchen, deine HP sind ziemlich niedrig.",
	"Diese Gegner-KI ist ziemlich schlau!",
	"Perfektes Timing bei diesem Sprung!",
	"Vielleicht solltest du deine Ausrüstung upgraden?",
}

var SceneComments = []string{
	"Die Grafik sieht wirklich fantastisch aus!",
	"Die Farben und Texturen in dieser Szene sind unglaublich detailliert!",
	"Diese Landschaft ist einfach atemberaubend gestaltet!",
	"Der Charakter-Look ist echt cool - tolle Details!",
	"Die Lichtstimmung in dieser Szene ist wirklich beeindruckend!",
	"Dieser Ort im Spiel ist wunderschön designt!",
	"Die Umgebung wirkt so realistisch, fast als wäre man selbst dort!",
	"Die Animationen sind super flüssig!",
	"Das Interface ist wirklich übersichtlich gestaltet!",
	"Die Atmosphäre hier ist fantastisch eingefangen!",
}

var CodeComments = []string{
	"Wow, das ist ein eleganter Code!",
	"Diese Funktion sieht effizienter aus als mein Algorithmus!",
	"Ich sehe da einen möglichen Bug in Zeile 42! Nur Spaß!",
	"Schicker Code! Hast du an Fehlerbehandlung gedacht?",
	"Clean Code at its finest!",
	"Die Variablennamen sind sehr aussagekräftig!",
	"Mit mehr Kommentaren wäre der Code noch besser lesbar!",
	"Dieser Code ist so gut strukturiert, da wird selbst Linus neidisch!",
	"Programmieren ist wie Zauberei, und du bist definitiv ein Meister!",
	"Ich sehe da einige clevere Optimierungen!",
}

var WebComments = []string{
	"Diese Website hat ein tolles Design!",
	"Das Interface sieht sehr benutzerfreundlich aus!",
	"Die Farbkombination dieser Seite ist echt ansprechend!",
	"Interessanter Content auf dieser Webseite!",
	"Diese Seite lädt schneller als ich rechnen kann!",
	"Schickes Web-Design - responsive und modern!",
	"Die Navigation ist wirklich gut durchdacht!",
	"Das nenne ich mal eine übersichtliche Webseite!",
	"Die Schriftart passt perfekt zum Stil der Seite!",
	"Diese Website sieht auf jedem Gerät gut aus!",
}

var TerminalComments = []string{
	"Ah, der gute alte Terminal - wo echte Techies sich zu Hause fühlen!",
	"Wer braucht schon GUIs, wenn man Kommandozeilen hat?",
	"Grüne Schrift auf schwarzem Hintergrund - klassisch und zeitlos!",
	"Mit diesen Befehlen bist du schneller als jede Maus!",
	"Ich fühle mich wie in 'Matrix', wenn ich dir beim Tippen zusehe!",
	"Bash, Zsh oder Fish? Egal, Hauptsache Terminal-Power!",
	"Das ist echtes Computing - direkt auf Maschinenebene!",
	"Ein echter Hacker braucht nur eine Kommandozeile und einen Kaffee!",
	"Elegant, effizient und ohne Schnickschnack - so muss IT sein!",
	"Das Terminal lügt nie - im Gegensatz zu manchen UIs!",
}

var DocumentComments = []string{
	"Dieses Dokument ist sehr gut strukturiert!",
	"Die Formatierung macht das Lesen angenehm!",
	"Interessante Informationen in diesem Text!",
	"Diese Präsentation hat wirklich Stil!",
	"Die Grafiken im Dokument sind sehr aussagekräftig!",
	"Elegant formatiert und leicht zu lesen - top!",
	"Die Gliederung dieses Dokuments ist vorbildlich!",
	"Inhaltlich tiefgründig und optisch ansprechend!",
	"Diese Tabelle fasst die Daten perfekt zusammen!",
	"Ein Dokument, das Klarheit schafft - sehr gut!",
}

// CategoryComments maps scene categories to their fallback table.
var CategoryComments = map[vision.Category][]string{
	vision.CategoryCode:     CodeComments,
	vision.CategoryBrowser:  WebComments,
	vision.CategoryGame:     GameComments,
	vision.CategoryTerminal: TerminalComments,
	vision.CategoryDocument: DocumentComments,
	vision.CategoryGeneral:  SceneComments,
}

// Greetings use {user}.
var Greetings = []string{
	"Willkommen im Stream, {user}! Schön, dass du da bist!",
	"Hey {user}! Willkommen! Was hältst du bisher vom Stream?",
	"Hallo {user}! Danke, dass du vorbeischaust!",
	"Willkommen an Bord, {user}! Mach es dir gemütlich.",
	"Hi {user}! Schön, dich im Chat zu sehen!",
	"Grüß dich, {user}! Genieße den Stream!",
	"Hallo {user}! Perfektes Timing, du bist genau zum besten Teil gekommen!",
	"Willkommen, {user}! Der Chat ist mit dir noch besser!",
	"Da ist ja {user}! Schön, dass du den Weg zu uns gefunden hast!",
	"Hey {user}! Tolles Timing, wir haben gerade erst angefangen!",
}

// Reminders use {bot}; they are sent round-robin.
var Reminders = []string{
	"📋 Verfügbare Befehle: !witz, !info, !stats, !hilfe, !bild, !spiel NAME, !ort NAME, !tod, !level X, !frag {bot} ...",
	"👋 Neu hier? Mit !witz bekommst du einen zufälligen Witz von mir!",
	"🎮 Verwende !info für aktuelle Spielinfos oder !stats für Statistiken.",
	"❓ Du hast eine Frage? Benutze !frag {bot} gefolgt von deiner Frage!",
	"🖼️ Mit !bild oder !scene kommentiere ich das aktuelle Bild im Stream.",
	"🤔 Brauchst du Hilfe? Tippe !hilfe für eine Liste aller Befehle!",
}

// MentionReplies answer free-form chat when the model is unavailable. They use {user}.
var MentionReplies = []string{
	"@{user} Hallo! Ich bin Zephyr, euer KI-Bot! 🤖 Probiert !hilfe für Befehle!",
	"@{user} Hi! Ich kann Bilder analysieren und Witze erzählen! 👁️🎭",
	"@{user} Hey! Verwendet !bild für Live-Bildanalyse oder !witz für einen Lacher! 😄",
}

// AskFallbacks answer !frag when the model is unavailable. They use {user}.
var AskFallbacks = []string{
	"@{user} Entschuldige, ich konnte keine Antwort generieren. Versuche es später noch einmal.",
}

var DeathQuips = []string{
	"Das war knapp!",
	"Kopf hoch, nächstes Mal klappt's besser!",
	"Halb so wild, du schaffst das!",
	"Aus Fehlern lernt man!",
	"Die Gegner werden auch immer gemeiner...",
}

const NoScreenshot = "Ich kann leider keinen Screenshot finden, um ihn zu kommentieren."

var moodEmoji = map[string]string{
	"sehr positiv": "😄🎉",
	"positiv":      "😊👍",
	"neutral":      "😐",
	"negativ":      "😕👎",
	"sehr negativ": "😢💔",
}
