package lua

import (
	"context"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"magicband-controller/internal/actions"
	"magicband-controller/internal/core"
)

// registerGoFunctions exposes the panel actions to a script. Each action
// returns true, or false and an error message.
func (e *Engine) registerGoFunctions(ctx context.Context, L *lua.LState, script string) {
	L.SetGlobal("preset", L.NewFunction(e.action(ctx, core.ActionPreset, "color")))
	L.SetGlobal("dual", L.NewFunction(e.action(ctx, core.ActionDual, "inner", "outer")))
	L.SetGlobal("crossfade", L.NewFunction(e.action(ctx, core.ActionCrossfade, "a", "b")))
	L.SetGlobal("rainbow", L.NewFunction(e.action(ctx, core.ActionRainbow, "r1", "r2", "r3", "r4", "r5")))
	L.SetGlobal("circle", L.NewFunction(e.action(ctx, core.ActionCircle)))
	L.SetGlobal("ping", L.NewFunction(e.action(ctx, core.ActionPing)))
	L.SetGlobal("manual", L.NewFunction(e.action(ctx, core.ActionManual, "text")))
	L.SetGlobal("vibration", L.NewFunction(e.luaVibration))

	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		cancellableSleep(ctx, time.Duration(L.ToInt(1))*time.Millisecond)
		return 0
	}))
	L.SetGlobal("should_stop", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(ctx.Err() != nil))
		return 1
	}))
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		e.logger.Info().Str("script", script).Msg(strings.Join(parts, "\t"))
		return 0
	}))
}

// action binds positional Lua arguments to the named action args.
func (e *Engine) action(ctx context.Context, a core.Action, keys ...string) lua.LGFunction {
	return func(L *lua.LState) int {
		args := actions.Args{}
		for i, key := range keys {
			v := L.Get(i + 1)
			if v == lua.LNil {
				continue
			}
			args[key] = v.String()
		}
		_, err := e.runner.Run(ctx, a, args)
		return pushResult(L, err)
	}
}

// luaVibration sets the vibration toggle and, optionally, the pattern used
// by the actions that follow.
func (e *Engine) luaVibration(L *lua.LState) int {
	args := actions.Args{"vibrate": strconv.FormatBool(L.ToBool(1))}
	if L.GetTop() >= 2 {
		args["pattern"] = L.Get(2).String()
	}
	_, err := e.runner.ApplyInputs(args)
	return pushResult(L, err)
}

func pushResult(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// cancellableSleep sleeps for d, waking early if ctx is cancelled.
// It returns true if the context was cancelled during sleep.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() != nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}
