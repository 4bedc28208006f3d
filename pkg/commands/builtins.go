package commands

import (
	"fmt"
	"strings"

	"github.com/umbralabs/umbra/pkg/localization"
)

// PluginLister is the narrow view of the plugin runtime the built-in
// commands need.
type PluginLister interface {
	LoadedPlugins() []string
}

// BuiltinDeps carries exactly the collaborators the built-in command
// set uses. Handlers never see anything wider than this.
type BuiltinDeps struct {
	Localization *localization.Service
	Plugins      PluginLister
	GameVersion  string

	// Print delivers command output to the chat log
	Print func(text string)
}

// RegisterBuiltins installs the built-in command set on the router
func RegisterBuiltins(r *Router, deps BuiltinDeps) error {
	if deps.Print == nil {
		deps.Print = func(string) {}
	}

	builtins := map[string]CommandInfo{
		"/xlhelp": {
			HelpKey:    "cmd.help",
			ShowInHelp: true,
			Handler: func(_, _ string) error {
				var sb strings.Builder
				sb.WriteString(deps.Localization.Tr("cmd.help.header"))
				for _, name := range r.Commands() {
					if help := r.HelpText(name); help != "" {
						sb.WriteString(fmt.Sprintf("\n%s: %s", name, help))
					}
				}
				deps.Print(sb.String())
				return nil
			},
		},
		"/xlversion": {
			HelpKey:    "cmd.version",
			ShowInHelp: true,
			Handler: func(_, _ string) error {
				deps.Print(fmt.Sprintf("%s %s",
					deps.Localization.Tr("cmd.version.prefix"), deps.GameVersion))
				return nil
			},
		},
		"/xllanguage": {
			HelpKey:    "cmd.language",
			ShowInHelp: true,
			Handler: func(_, _ string) error {
				deps.Print(string(deps.Localization.Language()))
				return nil
			},
		},
		"/xlplugins": {
			HelpKey:    "cmd.plugins",
			ShowInHelp: true,
			Handler: func(_, _ string) error {
				if deps.Plugins == nil {
					deps.Print(deps.Localization.Tr("cmd.plugins.disabled"))
					return nil
				}
				loaded := deps.Plugins.LoadedPlugins()
				deps.Print(fmt.Sprintf("%s (%d)\n%s",
					deps.Localization.Tr("cmd.plugins.header"),
					len(loaded), strings.Join(loaded, "\n")))
				return nil
			},
		},
	}

	for name, info := range builtins {
		if err := r.AddHandler(name, info); err != nil {
			return err
		}
	}
	return nil
}
