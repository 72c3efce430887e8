package media

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/debuglog"
)

// Launcher opens recipe images and source pages in external programs.
type Launcher struct {
	imageViewer   string
	browser       string
	defaultOpener string
	registry      *PlayerRegistry
	detector      *TypeDetector
	lookPath      func(string) (string, error)
	start         func(*exec.Cmd) error
}

func NewLauncher(cfg *config.Config) *Launcher {
	return newLauncher(cfg, exec.LookPath, startDetached)
}

func newLauncher(cfg *config.Config, lookPath func(string) (string, error), start func(*exec.Cmd) error) *Launcher {
	registry, err := NewPlayerRegistry(UserPlayersFile())
	if err != nil {
		debuglog.Warnf("player definitions: %v", err)
		registry = &PlayerRegistry{players: map[string]PlayerDefinition{}}
	}

	detector, err := NewTypeDetector()
	if err != nil {
		debuglog.Warnf("media types: %v", err)
		detector = &TypeDetector{config: &TypesConfig{}}
	}

	l := &Launcher{
		defaultOpener: cfg.Media.DefaultOpener,
		registry:      registry,
		detector:      detector,
		lookPath:      lookPath,
		start:         start,
	}
	if l.defaultOpener == "" {
		l.defaultOpener = detector.DefaultOpener()
	}

	var players config.MediaPlayers
	switch runtime.GOOS {
	case "darwin":
		players = cfg.Media.Darwin
	case "windows":
		players = cfg.Media.Windows
	default:
		players = cfg.Media.Linux
	}

	l.imageViewer = l.findCommand(players.Image...)
	l.browser = l.findCommand(players.Browser...)
	if l.imageViewer == "" {
		l.imageViewer = l.defaultOpener
	}
	if l.browser == "" {
		l.browser = l.defaultOpener
	}
	return l
}

// Command returns the process that Open would start for url.
func (l *Launcher) Command(url string) (*exec.Cmd, error) {
	if url == "" {
		return nil, fmt.Errorf("nothing to open")
	}

	kind := l.detector.DetectKind(url)
	player := l.browser
	if kind == KindImage {
		player = l.imageViewer
	}
	if player == "" {
		return nil, fmt.Errorf("no application found to open %s", kind)
	}

	cmd, err := l.registry.Command(player, kind, url)
	if err != nil {
		debuglog.Debugf("%v; falling back to %s", err, l.defaultOpener)
		return l.registry.Command(l.defaultOpener, KindPage, url)
	}
	return cmd, nil
}

// Open starts the matching program without waiting for it to exit.
func (l *Launcher) Open(url string) error {
	cmd, err := l.Command(url)
	if err != nil {
		return err
	}
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func (l *Launcher) findCommand(commands ...string) string {
	for _, c := range commands {
		name := c
		if def, ok := l.registry.Definition(c); ok && def.Command != "" {
			name = def.Command
		}
		if _, err := l.lookPath(name); err == nil {
			return c
		}
	}
	return ""
}
