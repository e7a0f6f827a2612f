package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/kasuganosora/npctalk/server/game/npc"
	"github.com/kasuganosora/npctalk/server/model"
	"github.com/kasuganosora/npctalk/server/resource"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the NPC scripts listed in <data_path>/npcs.json into the catalogue",
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	loader := resource.NewLoader(a.cfg.Dialog.DataPath)
	if err := loader.Load(); err != nil {
		if len(loader.Scripts) == 0 {
			return err
		}
		a.logger.Warn("resource load warning", zap.Error(err))
	}

	store := npc.NewGormScriptStore(a.db)
	out := cmd.OutOrStdout()
	var imported, unchanged, failed int
	for _, id := range loader.NPCs() {
		s, _ := loader.Script(id)
		build := s.Build
		if build == "" {
			build = a.cfg.Dialog.Build
		}
		if _, err := a.cfg.Dialog.Opcodes(build); err != nil {
			a.logger.Warn("skipping script", zap.String("npc", id), zap.Error(err))
			failed++
			continue
		}

		changed, err := store.Put(ctx, &model.NPCScript{
			NPC:    id,
			Name:   s.Name,
			Build:  build,
			MainPC: s.MainPC,
			Bytes:  s.Bytes,
		})
		if err != nil {
			a.logger.Error("import failed", zap.String("npc", id), zap.Error(err))
			failed++
			continue
		}

		status := "unchanged"
		if changed {
			status = "imported"
			imported++
			if err := a.rules.Invalidate(ctx, id); err != nil {
				a.logger.Warn("rule cache invalidate", zap.String("npc", id), zap.Error(err))
			}
		} else {
			unchanged++
		}
		fmt.Fprintf(out, "  %-16s %-6s %-9s %s\n", id, build, status, humanize.Bytes(uint64(len(s.Bytes))))
	}

	fmt.Fprintf(out, "\n  %d imported, %d unchanged, %d failed\n", imported, unchanged, failed)
	if failed > 0 {
		return fmt.Errorf("%d script(s) failed to import", failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
