package commands

import "strings"

// Prefix marks command-shaped chat messages.
const Prefix = "!"

// Kind identifies a chat command.
type Kind uint8

const (
	Unknown Kind = iota
	Joke
	Info
	Stats
	Help
	Image
	SetGame
	SetLocation
	Death
	SetLevel
	Ask
	Ping
	Mood
)

var kindNames = [...]string{
	Unknown:     "unknown",
	Joke:        "joke",
	Info:        "info",
	Stats:       "stats",
	Help:        "help",
	Image:       "image",
	SetGame:     "set-game",
	SetLocation: "set-location",
	Death:       "death",
	SetLevel:    "set-level",
	Ask:         "ask",
	Ping:        "ping",
	Mood:        "mood",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Spec describes one command. The table below is the single source for
// parsing and for the help text.
type Spec struct {
	Kind  Kind
	Names []string
	// NeedsArg commands answer with Usage when called bare.
	NeedsArg bool
	// Label and Help render the help entry; {bot} is replaced by the bot name.
	Label string
	Help  string
	Usage string
}

var Table = []Spec{
	{Kind: Joke, Names: []string{"!witz", "!joke"}, Label: "!witz", Help: "zufälliger Witz"},
	{Kind: Info, Names: []string{"!info"}, Label: "!info", Help: "Spielinfo"},
	{Kind: Stats, Names: []string{"!stats"}, Label: "!stats", Help: "Statistiken"},
	{Kind: Image, Names: []string{"!bild", "!scene"}, Label: "!bild/!scene", Help: "Kommentar zur aktuellen Szene"},
	{Kind: SetGame, Names: []string{"!spiel"}, NeedsArg: true, Label: "!spiel NAME", Help: "Spiel ändern", Usage: "!spiel NAME"},
	{Kind: SetLocation, Names: []string{"!ort"}, NeedsArg: true, Label: "!ort NAME", Help: "Ort ändern", Usage: "!ort NAME"},
	{Kind: Death, Names: []string{"!tod"}, Label: "!tod", Help: "Tod zählen"},
	{Kind: SetLevel, Names: []string{"!level"}, NeedsArg: true, Label: "!level X", Help: "Level setzen", Usage: "!level X"},
	{Kind: Ask, Names: []string{"!frag"}, NeedsArg: true, Label: "!frag {bot} ...", Help: "direkte Frage an mich", Usage: "!frag {bot} FRAGE"},
	{Kind: Ping, Names: []string{"!ping"}, Label: "!ping", Help: "Verbindungstest"},
	{Kind: Mood, Names: []string{"!stimmung", "!mood"}, Label: "!stimmung", Help: "Chat-Stimmung"},
	{Kind: Help, Names: []string{"!hilfe", "!help"}},
}

var byName = func() map[string]*Spec {
	m := map[string]*Spec{}
	for i := range Table {
		for _, n := range Table[i].Names {
			m[n] = &Table[i]
		}
	}
	return m
}()

// Command is a parsed command-shaped message.
type Command struct {
	Kind Kind
	// Name is the command token as typed, lower-cased.
	Name string
	// Arg is the rest of the message with its original case.
	Arg  string
	Spec *Spec
}

// Parse splits a message into command and argument. ok is false for
// free-form text; an unrecognized command has Kind Unknown.
func Parse(text string) (cmd Command, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, Prefix) || len(text) == len(Prefix) {
		return Command{}, false
	}
	name, arg, _ := strings.Cut(text, " ")
	cmd = Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}
	if spec, found := byName[cmd.Name]; found {
		cmd.Kind = spec.Kind
		cmd.Spec = spec
	}
	return cmd, true
}

// HelpText renders the command list.
func HelpText(bot string) string {
	parts := make([]string, 0, len(Table))
	for _, s := range Table {
		if s.Label == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(s.Label, "{bot}", bot)+" ("+s.Help+")")
	}
	return "📋 Befehle: " + strings.Join(parts, ", ")
}
