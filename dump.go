package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/kasuganosora/npctalk/server/game/npc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump <npc>",
	Short: "List the keyword rules of an imported NPC script",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

// dumpDoc is the YAML form of a rule listing.
type dumpDoc struct {
	NPC      string     `yaml:"npc"`
	Name     string     `yaml:"name,omitempty"`
	Build    string     `yaml:"build"`
	Hash     string     `yaml:"hash"`
	Size     string     `yaml:"size"`
	MainPC   int        `yaml:"main_pc"`
	FirstKey int        `yaml:"first_key_pc"`
	Rules    []dumpRule `yaml:"rules"`
}

type dumpRule struct {
	conversation.Rule `yaml:",inline"`
	Parent            int `yaml:"parent"`
	Depth             int `yaml:"depth"`
}

func runDump(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := npc.NewGormScriptStore(a.db).Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	ops, err := a.cfg.Dialog.Opcodes(rec.Build)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch dumpFormat {
	case "text":
		fmt.Fprintf(out, "%s (%s) build=%s %s\n", rec.NPC, rec.Name, rec.Build, humanize.Bytes(uint64(rec.Size)))
		return conversation.NewDisassembler(out, ops).Disassemble(rec.Bytes, rec.MainPC)
	case "yaml":
		tree := conversation.ExtractTree(rec.Bytes, rec.MainPC, ops)
		doc := dumpDoc{
			NPC:      rec.NPC,
			Name:     rec.Name,
			Build:    rec.Build,
			Hash:     rec.Hash,
			Size:     humanize.Bytes(uint64(rec.Size)),
			MainPC:   rec.MainPC,
			FirstKey: conversation.FirstKeyPC(rec.Bytes, rec.MainPC, ops),
			Rules:    make([]dumpRule, len(tree.Rules)),
		}
		for i, r := range tree.Rules {
			doc.Rules[i] = dumpRule{Rule: r, Parent: tree.Parent[i], Depth: tree.Depth(i)}
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text or yaml)", dumpFormat)
	}
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFormat, "format", "text", "output format: text or yaml")
	rootCmd.AddCommand(dumpCmd)
}
