package media

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

//go:embed players.toml
var playersTOML []byte

// PlayerDefinition describes how to invoke a viewer or browser.
type PlayerDefinition struct {
	Description string `toml:"description"`
	// Command overrides the executable when it differs from the player name.
	Command   string    `toml:"command,omitempty"`
	Platforms []string  `toml:"platforms"`
	Image     *KindArgs `toml:"image,omitempty"`
	Video     *KindArgs `toml:"video,omitempty"`
	Page      *KindArgs `toml:"page,omitempty"`
}

type KindArgs struct {
	Args []string `toml:"args"`
}

type PlayersConfig struct {
	Players map[string]PlayerDefinition `toml:"players"`
}

type PlayerRegistry struct {
	players map[string]PlayerDefinition
}

// NewPlayerRegistry loads the built-in definitions and merges overrides from
// the given files, later files winning. Missing files are ignored.
func NewPlayerRegistry(overrides ...string) (*PlayerRegistry, error) {
	var cfg PlayersConfig
	if err := toml.Unmarshal(playersTOML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing players.toml: %w", err)
	}
	r := &PlayerRegistry{players: cfg.Players}
	if r.players == nil {
		r.players = map[string]PlayerDefinition{}
	}

	for _, path := range overrides {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var user PlayersConfig
		if err := toml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for name, def := range user.Players {
			r.players[name] = def
		}
	}
	return r, nil
}

// UserPlayersFile is where custom player definitions are read from.
func UserPlayersFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "przepisy", "players.toml")
}

// Command builds the invocation of player for a link of the given kind.
// Unknown players are run as `player url`.
func (r *PlayerRegistry) Command(player string, kind Kind, url string) (*exec.Cmd, error) {
	def, ok := r.players[player]
	if !ok {
		return exec.Command(player, url), nil
	}

	if !slices.Contains(def.Platforms, runtime.GOOS) {
		return nil, fmt.Errorf("%s not supported on %s", player, runtime.GOOS)
	}

	var args *KindArgs
	switch kind {
	case KindImage:
		args = def.Image
	case KindVideo:
		args = def.Video
	default:
		args = def.Page
	}
	if args == nil {
		return nil, fmt.Errorf("%s cannot open %s links", player, kind)
	}

	name := player
	if def.Command != "" {
		name = def.Command
	}
	argv := append(slices.Clone(args.Args), url)
	return exec.Command(name, argv...), nil
}

func (r *PlayerRegistry) Definition(player string) (PlayerDefinition, bool) {
	def, ok := r.players[player]
	return def, ok
}
