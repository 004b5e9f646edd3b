// Package sysact executes desktop-level side effects: launching and closing
// applications, opening URLs and tapping media keys. Everything shells out,
// so failures are reported but nothing here is retried.
package sysact

import (
	"context"
	"fmt"
	log "log/slog"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// appMap translates spoken application names onto launchable commands.
var appMap = map[string]string{
	"chrome":     "google-chrome",
	"firefox":    "firefox",
	"files":      "nautilus",
	"terminal":   "x-terminal-emulator",
	"calculator": "gnome-calculator",
	"editor":     "gedit",
	"spotify":    "spotify",
	"vlc":        "vlc",
}

type Actions struct{}

func New() *Actions { return &Actions{} }

// OpenApp launches the named application. Unknown names fail without side
// effect.
func (a *Actions) OpenApp(ctx context.Context, name string) error {
	command, ok := appMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("application %q is not configured", name)
	}

	cmd := exec.CommandContext(ctx, command)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %q: %w", command, err)
	}
	log.Info("Opened application", "app", name, "command", command)
	go cmd.Wait()
	return nil
}

// CloseApp terminates the named application by process name.
func (a *Actions) CloseApp(ctx context.Context, name string) error {
	command, ok := appMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("application %q is not configured", name)
	}

	if err := exec.CommandContext(ctx, "pkill", "-f", command).Run(); err != nil {
		return fmt.Errorf("close %q: %w", name, err)
	}
	log.Info("Closed application", "app", name)
	return nil
}

// SearchWeb opens the default browser on a search results page.
func (a *Actions) SearchWeb(ctx context.Context, query string) error {
	return a.OpenURL(ctx, "https://www.google.com/search?q="+url.QueryEscape(query))
}

// OpenURL hands the URL to the platform opener.
func (a *Actions) OpenURL(ctx context.Context, target string) error {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}

	if err := exec.CommandContext(ctx, opener, target).Run(); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	log.Info("Opened URL", "url", target)
	return nil
}

// MediaKey taps a media control key (playpause, next, previous).
func (a *Actions) MediaKey(ctx context.Context, key string) error {
	name := map[string]string{
		"playpause": "XF86AudioPlay",
		"next":      "XF86AudioNext",
		"previous":  "XF86AudioPrev",
	}[key]
	if name == "" {
		return fmt.Errorf("unknown media key %q", key)
	}

	if err := exec.CommandContext(ctx, "xdotool", "key", name).Run(); err != nil {
		return fmt.Errorf("media key %q: %w", key, err)
	}
	return nil
}
