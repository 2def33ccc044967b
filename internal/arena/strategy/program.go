package strategy

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	appErr "arena/pkg/errors"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// EntryPoint is the global function every submitted program must define.
const EntryPoint = "make_decision"

// Limits bound the VM of one strategy instance.
type Limits struct {
	CallStackSize   int `yaml:"callStackSize"`
	RegistrySize    int `yaml:"registrySize"`
	RegistryMaxSize int `yaml:"registryMaxSize"`
}

// DefaultLimits returns the VM caps used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		CallStackSize:   200,
		RegistrySize:    1024,
		RegistryMaxSize: 64 * 1024,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.CallStackSize <= 0 {
		l.CallStackSize = def.CallStackSize
	}
	if l.RegistrySize <= 0 {
		l.RegistrySize = def.RegistrySize
	}
	if l.RegistryMaxSize < l.RegistrySize {
		l.RegistryMaxSize = def.RegistryMaxSize
		if l.RegistryMaxSize < l.RegistrySize {
			l.RegistryMaxSize = l.RegistrySize
		}
	}
	return l
}

// Program is a compiled submission. It is immutable and safe to share
// between goroutines; every trial instantiates its own VM from it.
type Program struct {
	name  string
	proto *lua.FunctionProto
}

// Compile parses and compiles the source read from r.
func Compile(name string, r io.Reader) (*Program, error) {
	chunk, err := parse.Parse(r, name)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StrategyLoadFailed, "syntax error: %v", err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StrategyLoadFailed, "compile error: %v", err)
	}
	return &Program{name: name, proto: proto}, nil
}

// CompileFile compiles the program stored at path.
func CompileFile(name, path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ScratchIOError, "open strategy file failed")
	}
	defer f.Close()
	return Compile(name, f)
}

// Name returns the participant name the program plays under.
func (p *Program) Name() string {
	return p.name
}

// InstanceOptions configure one instantiation.
type InstanceOptions struct {
	Limits Limits
	// Seed feeds the arena.random module.
	Seed int64
	// Output receives prints made while the chunk itself runs.
	Output *Output
}

// LuaStrategy is one loaded instance of a Program. It is bound to a single
// trial and must not be shared between goroutines.
type LuaStrategy struct {
	name    string
	state   *lua.LState
	decide  *lua.LFunction
	rng     *rand.Rand
	out     *Output
	loadOut *Output
	modules map[string]lua.LValue
	closed  bool
}

// Instantiate creates a fresh VM, runs the program's top-level chunk under ctx
// and resolves its entry point.
func (p *Program) Instantiate(ctx context.Context, opts InstanceOptions) (*LuaStrategy, error) {
	limits := opts.Limits.withDefaults()
	L := lua.NewState(lua.Options{
		SkipOpenLibs:     true,
		CallStackSize:    limits.CallStackSize,
		RegistrySize:     limits.RegistrySize,
		RegistryMaxSize:  limits.RegistryMaxSize,
		RegistryGrowStep: 32,
	})
	s := &LuaStrategy{
		name:    p.name,
		state:   L,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		loadOut: opts.Output,
		modules: make(map[string]lua.LValue),
	}
	if err := s.openLibs(); err != nil {
		L.Close()
		return nil, appErr.Wrapf(err, appErr.ExecutionSystemError, "open vm libraries failed")
	}

	if ctx != nil {
		L.SetContext(ctx)
	}
	L.Push(L.NewFunctionFromProto(p.proto))
	err := L.PCall(0, lua.MultRet, nil)
	if ctx != nil {
		L.RemoveContext()
	}
	if err != nil {
		L.Close()
		return nil, appErr.Wrapf(err, appErr.StrategyLoadFailed, "strategy failed to load: %s", luaMessage(err))
	}
	L.SetTop(0)

	fn, ok := L.GetGlobal(EntryPoint).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, appErr.Newf(appErr.StrategyLoadFailed, "strategy does not define %s(state)", EntryPoint)
	}
	s.decide = fn
	return s, nil
}

func (s *LuaStrategy) openLibs() error {
	L := s.state
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return err
		}
	}
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring", "module",
		"collectgarbage", "getfenv", "setfenv", "rawset", "rawget",
		"newproxy", "_printregs",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(s.luaPrint))
	L.SetGlobal("require", L.NewFunction(s.luaRequire))
	return nil
}

// Name implements Strategy.
func (s *LuaStrategy) Name() string {
	return s.name
}

// Decide implements Strategy by calling make_decision(state) under ctx.
func (s *LuaStrategy) Decide(ctx context.Context, state State, out *Output) (string, error) {
	if s.closed {
		return "", appErr.Newf(appErr.ExecutionSystemError, "strategy %s is closed", s.name)
	}
	L := s.state
	s.out = out
	defer func() { s.out = nil }()
	if ctx != nil {
		L.SetContext(ctx)
		defer L.RemoveContext()
	}

	if err := L.CallByParam(lua.P{
		Fn:      s.decide,
		NRet:    1,
		Protect: true,
	}, toLua(L, state)); err != nil {
		return "", appErr.Wrapf(err, appErr.TrialFailed, "%s failed: %s", EntryPoint, luaMessage(err))
	}
	ret := L.Get(-1)
	L.Pop(1)
	action, ok := ret.(lua.LString)
	if !ok {
		return "", appErr.Newf(appErr.TrialFailed, "%s returned %s, expected a string", EntryPoint, ret.Type().String())
	}
	return strings.ToLower(strings.TrimSpace(string(action))), nil
}

// Close releases the VM. It is safe to call more than once.
func (s *LuaStrategy) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.state.Close()
}

func (s *LuaStrategy) luaPrint(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	out := s.out
	if out == nil {
		out = s.loadOut
	}
	out.Println(strings.Join(parts, "\t"))
	return 0
}

func (s *LuaStrategy) luaRequire(L *lua.LState) int {
	name := L.CheckString(1)
	if mod, ok := s.modules[name]; ok {
		L.Push(mod)
		return 1
	}
	loader, ok := moduleLoaders[name]
	if !ok {
		L.RaiseError("module %q is not available", name)
		return 0
	}
	mod := loader(L, s)
	s.modules[name] = mod
	L.Push(mod)
	return 1
}

// toLua converts a Go value into its Lua representation.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []string:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(lua.LString(item))
		}
		return tbl
	case []int:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(lua.LNumber(item))
		}
		return tbl
	case []float64:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(lua.LNumber(item))
		}
		return tbl
	case State:
		return mapToLua(L, val)
	case map[string]any:
		return mapToLua(L, val)
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

func mapToLua(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.CreateTable(0, len(m))
	for k, v := range m {
		tbl.RawSetString(k, toLua(L, v))
	}
	return tbl
}

func luaMessage(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok {
		if apiErr.Type == lua.ApiErrorRun && apiErr.Object != nil {
			return apiErr.Object.String()
		}
		return apiErr.Error()
	}
	return err.Error()
}
