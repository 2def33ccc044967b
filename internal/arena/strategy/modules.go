package strategy

import (
	lua "github.com/yuin/gopher-lua"
)

type moduleLoader func(L *lua.LState, s *LuaStrategy) lua.LValue

// moduleLoaders is the complete set of modules require can resolve.
var moduleLoaders = map[string]moduleLoader{
	"arena.random": loadRandomModule,
	"arena.player": loadPlayerModule,
}

// ModuleNames lists the modules available to submitted code.
func ModuleNames() []string {
	names := make([]string, 0, len(moduleLoaders))
	for name := range moduleLoaders {
		names = append(names, name)
	}
	return names
}

func loadRandomModule(L *lua.LState, s *LuaStrategy) lua.LValue {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		// roll(sides) -> 1..sides
		"roll": func(L *lua.LState) int {
			sides := L.OptInt(1, 6)
			if sides < 1 {
				L.ArgError(1, "sides must be positive")
				return 0
			}
			L.Push(lua.LNumber(s.rng.Intn(sides) + 1))
			return 1
		},
		// chance(p) -> true with probability p
		"chance": func(L *lua.LState) int {
			p := float64(L.CheckNumber(1))
			L.Push(lua.LBool(s.rng.Float64() < p))
			return 1
		},
		// pick(list) -> random element of a non-empty array table
		"pick": func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			n := tbl.Len()
			if n == 0 {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(tbl.RawGetInt(s.rng.Intn(n) + 1))
			return 1
		},
	})
}

func loadPlayerModule(L *lua.LState, _ *LuaStrategy) lua.LValue {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"new": newPlayer,
	})
}

// newPlayer builds a table with name, remember(key, value) and recall(key).
// Its memory lives only as long as the VM, which is one trial.
func newPlayer(L *lua.LState) int {
	name := L.OptString(1, "player")
	memory := L.NewTable()
	player := L.NewTable()
	player.RawSetString("name", lua.LString(name))
	player.RawSetString("remember", L.NewFunction(func(L *lua.LState) int {
		// accepts both p.remember(k, v) and p:remember(k, v)
		base := 1
		if L.Get(1) == player {
			base = 2
		}
		memory.RawSet(L.CheckAny(base), L.Get(base+1))
		return 0
	}))
	player.RawSetString("recall", L.NewFunction(func(L *lua.LState) int {
		base := 1
		if L.Get(1) == player {
			base = 2
		}
		L.Push(memory.RawGet(L.CheckAny(base)))
		return 1
	}))
	L.Push(player)
	return 1
}
