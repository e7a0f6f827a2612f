package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/kasuganosora/npctalk/server/game/npc"
	"github.com/kasuganosora/npctalk/server/plugin/hook"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	talkMode     string
	talkPlayer   string
	talkGreeting string
	talkParty    int
	talkHour     int
)

var talkCmd = &cobra.Command{
	Use:   "talk <npc>",
	Short: "Talk to an imported NPC; one line of input per turn, 'bye' to leave",
	Args:  cobra.ExactArgs(1),
	RunE:  runTalk,
}

// farewell ends the talk loop after its turn has been played.
const farewell = "bye"

func runTalk(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	mode := talkMode
	if mode == "" {
		mode = a.cfg.Dialog.Mode
	}
	if mode != npc.ModeCursor && mode != npc.ModeLegacy {
		return fmt.Errorf("unknown mode %q (want cursor or legacy)", mode)
	}
	hour := talkHour
	if hour < 0 {
		hour = time.Now().Hour()
	}

	hooks := hook.NewCenter()
	hooks.Register(hook.TurnTyped, -1, "squeeze-space", squeezeSpace)
	if err := a.registerScriptHooks(hooks); err != nil {
		return err
	}

	ex, err := a.executor(hooks)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := ex.Open(ctx, args[0], conversation.ContextInput{
		Hour:      hour,
		Player:    talkPlayer,
		Greeting:  talkGreeting,
		PartySize: talkParty,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("talk session opened",
		zap.String("npc", s.NPC), zap.String("session", s.ID), zap.String("mode", mode))

	turn := ex.Talk
	if mode == npc.ModeLegacy {
		turn = ex.Reply
	}

	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}
		typed := strings.TrimSpace(in.Text())
		if typed == "" {
			continue
		}

		lines, err := turn(ctx, s, typed)
		switch {
		case errors.Is(err, npc.ErrRateLimited):
			fmt.Fprintln(out, "(slow down)")
			continue
		case err != nil:
			return err
		}
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
		if strings.EqualFold(typed, farewell) {
			return nil
		}
	}
}

// squeezeSpace collapses runs of whitespace in the typed input.
func squeezeSpace(_ context.Context, _ string, d *hook.TurnData) error {
	d.Typed = strings.Join(strings.Fields(d.Typed), " ")
	return nil
}

func init() {
	talkCmd.Flags().StringVar(&talkMode, "mode", "", "cursor or legacy (default from config)")
	talkCmd.Flags().StringVar(&talkPlayer, "player", "", "player name ($P)")
	talkCmd.Flags().StringVar(&talkGreeting, "greeting", "", "form of address ($G), e.g. milord")
	talkCmd.Flags().IntVar(&talkParty, "party", 1, "party size, player included ($C)")
	talkCmd.Flags().IntVar(&talkHour, "hour", -1, "hour of day 0-23 ($H, $T); current hour when negative")
	rootCmd.AddCommand(talkCmd)
}
