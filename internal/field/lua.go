package field

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"gonum.org/v1/gonum/spatial/r3"
)

// LuaEntry is the global function a field script must define. It receives
// (t, x, y, z) in SI units and returns ex, ey, ez, bx, by, bz.
const LuaEntry = "field"

// LuaLoadTimeout bounds the top-level execution of a script in NewLua.
var LuaLoadTimeout = 5 * time.Second

var errLuaClosed = errors.New("field script: interpreter closed")

// luaLibs are the only standard libraries a script sees. os, io, package
// and debug are never opened.
var luaLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// luaBlocked are base functions that reach the file system or the module
// loader.
var luaBlocked = []string{"dofile", "loadfile", "require", "module"}

func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range luaLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range luaBlocked {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// Lua evaluates a field formula written as a Lua script. A Lua value owns an
// interpreter and is safe for concurrent use, but calls are serialised; build
// one per run with LuaFactory for parallel sweeps.
type Lua struct {
	mu sync.Mutex
	L  *lua.LState
	fn lua.LValue
}

// NewLua runs src in a sandbox that only has the base, table, string and
// math libraries, and looks up its field function.
func NewLua(src string) (*Lua, error) {
	L := newSandbox()
	ctx, cancel := context.WithTimeout(context.Background(), LuaLoadTimeout)
	defer cancel()
	L.SetContext(ctx)
	err := L.DoString(src)
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("load field script: %w", err)
	}
	fn := L.GetGlobal(LuaEntry)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("field script does not define function %q", LuaEntry)
	}
	return &Lua{L: L, fn: fn}, nil
}

func LoadLua(path string) (*Lua, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field script: %w", err)
	}
	return NewLua(string(src))
}

// LuaFactory compiles src once per call of the returned Factory.
func LuaFactory(src string) Factory {
	return func() (Field, error) {
		return NewLua(src)
	}
}

// SetContext makes every later Evaluate abort once ctx is done.
func (l *Lua) SetContext(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.L != nil {
		l.L.SetContext(ctx)
	}
}

func (l *Lua) Evaluate(t, x, y, z float64) (Sample, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.L == nil {
		return Sample{}, errLuaClosed
	}

	err := l.L.CallByParam(lua.P{Fn: l.fn, NRet: 6, Protect: true},
		lua.LNumber(t), lua.LNumber(x), lua.LNumber(y), lua.LNumber(z))
	if err != nil {
		return Sample{}, fmt.Errorf("field script: %w", err)
	}
	defer l.L.Pop(6)

	var out [6]float64
	for i := range out {
		v := l.L.Get(i - 6)
		n, ok := v.(lua.LNumber)
		if !ok {
			return Sample{}, fmt.Errorf("field script: return value %d is %s, want number", i+1, v.Type())
		}
		out[i] = float64(n)
	}
	return Sample{
		E: r3.Vec{X: out[0], Y: out[1], Z: out[2]},
		B: r3.Vec{X: out[3], Y: out[4], Z: out[5]},
	}, nil
}

func (l *Lua) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.L != nil {
		l.L.Close()
		l.L = nil
	}
}
