package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/kasuganosora/npctalk/server/plugin/hook"
)

// Guard wraps fn so it runs only when cond holds for the turn. cond is an
// expr-lang expression over npc, session, typed, outcome and lines, e.g.
// `npc == "iolo" && outcome == "no-match"`. An empty cond returns fn as is.
func Guard(cond string, fn hook.HookFn) (hook.HookFn, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return fn, nil
	}
	program, err := expr.Compile(cond, expr.Env(turnEnv(&hook.TurnData{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("script: compile condition %q: %w", cond, err)
	}
	return func(ctx context.Context, event string, data *hook.TurnData) error {
		out, err := expr.Run(program, turnEnv(data))
		if err != nil {
			return fmt.Errorf("script: eval condition %q: %w", cond, err)
		}
		if ok, _ := out.(bool); !ok {
			return nil
		}
		return fn(ctx, event, data)
	}, nil
}

func turnEnv(d *hook.TurnData) map[string]any {
	lines := d.Lines
	if lines == nil {
		lines = []string{}
	}
	return map[string]any{
		"npc":     d.NPC,
		"session": d.SessionID,
		"typed":   d.Typed,
		"outcome": d.Outcome,
		"lines":   lines,
	}
}
