// Command luadbg-repl is a thin demo harness: it builds a host Lua state
// (optionally pre-populated from a fixture), attaches a debugger Lua state
// with the visitor module wired in, and reads debugger-side Lua snippets
// from stdin, evaluating each one against the attached session.
//
// This harness exists only to exercise the visitor package end to end; it is
// not part of the inspected API surface itself (SPEC_FULL.md 6.1).
package main

import (
	"bufio"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"

	"github.com/zot/luadbg-visitor/internal/config"
	"github.com/zot/luadbg-visitor/internal/session"
	"github.com/zot/luadbg-visitor/internal/visitor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "luadbg-repl: %v\n", err)
		return 1
	}

	host := lua.NewState()
	defer host.Close()

	if cfg.Host.Fixture != "" {
		if err := loadFixture(host, cfg.Host.Fixture); err != nil {
			fmt.Fprintf(os.Stderr, "luadbg-repl: loading fixture: %v\n", err)
			return 1
		}
	}
	if cfg.Host.Script != "" {
		if err := host.DoFile(cfg.Host.Script); err != nil {
			fmt.Fprintf(os.Stderr, "luadbg-repl: running host script: %v\n", err)
			return 1
		}
	}

	debugger := lua.NewState()
	defer debugger.Close()

	sess := session.Attach(host, debugger, cfg)
	visitor.Attach(sess)

	cfg.Log(1, "luadbg-repl ready, reading debugger statements from stdin")
	return repl(debugger)
}

// loadFixture populates the host's global table from a YAML document of
// scalar and nested map/list values, a lightweight stand-in for a real
// program's startup state (SPEC_FULL.md 2.1/6.1).
func loadFixture(host *lua.LState, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	for name, val := range doc {
		host.SetGlobal(name, toLValue(host, val))
	}
	return nil
}

func toLValue(host *lua.LState, v interface{}) lua.LValue {
	switch tv := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(tv)
	case int:
		return lua.LNumber(tv)
	case float64:
		return lua.LNumber(tv)
	case string:
		return lua.LString(tv)
	case []interface{}:
		tb := host.NewTable()
		for i, item := range tv {
			tb.RawSetInt(i+1, toLValue(host, item))
		}
		return tb
	case map[string]interface{}:
		tb := host.NewTable()
		for k, item := range tv {
			tb.RawSetString(k, toLValue(host, item))
		}
		return tb
	default:
		return lua.LNil
	}
}

// repl reads one debugger-side Lua statement per line and executes it,
// printing any error to stderr without aborting the session -- a syntax or
// runtime mistake in one line should not lose the rest of the interaction.
func repl(debugger *lua.LState) int {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := debugger.DoString(line); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "luadbg-repl: %v\n", err)
		return 1
	}
	return 0
}
