package plugins

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/umbralabs/umbra/pkg/logger"
)

// HostAPI is what plugin scripts see as the `umbra` table
type HostAPI struct {
	// Print delivers plugin text to the chat log
	Print func(text string)

	// GameVersion is exposed read-only to scripts
	GameVersion string
}

// LoadedPlugin is one running plugin instance. Each plugin owns its
// own interpreter state; states are never shared between plugins.
type LoadedPlugin struct {
	Manifest *Manifest

	logger logger.Logger
	mu     sync.Mutex
	state  *lua.LState
}

// loadPlugin runs the plugin's entry script and its on_load hook
func loadPlugin(m *Manifest, api HostAPI, log logger.Logger) (*LoadedPlugin, error) {
	L := lua.NewState()

	host := L.NewTable()
	L.SetField(host, "log", L.NewFunction(func(L *lua.LState) int {
		log.Info(L.CheckString(1), logger.WithField("plugin", m.Name))
		return 0
	}))
	L.SetField(host, "print", L.NewFunction(func(L *lua.LState) int {
		if api.Print != nil {
			api.Print(L.CheckString(1))
		}
		return 0
	}))
	L.SetField(host, "game_version", lua.LString(api.GameVersion))
	L.SetGlobal("umbra", host)

	if err := L.DoFile(m.MainPath()); err != nil {
		L.Close()
		return nil, fmt.Errorf("plugins: %s entry script failed: %w", m.Name, err)
	}

	p := &LoadedPlugin{
		Manifest: m,
		logger:   log.WithSubsystem("plugin:" + m.Name),
		state:    L,
	}
	if err := p.callHook("on_load"); err != nil {
		L.Close()
		return nil, err
	}
	return p, nil
}

// callHook invokes a global function in the plugin's state if the
// script defined it.
func (p *LoadedPlugin) callHook(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == nil {
		return nil
	}
	fn := p.state.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	if err := p.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		return fmt.Errorf("plugins: %s %s failed: %w", p.Manifest.Name, name, err)
	}
	return nil
}

// Unload runs the plugin's on_unload hook and closes its interpreter.
// A failing hook is logged; the interpreter is closed regardless.
func (p *LoadedPlugin) Unload() {
	if err := p.callHook("on_unload"); err != nil {
		p.logger.Warn("Unload hook failed", logger.WithError(err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != nil {
		p.state.Close()
		p.state = nil
	}
}
