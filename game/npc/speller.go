// 关键词拼写纠正：未匹配的输入按 NPC 的关键词表纠正后重试一次。
package npc

import (
	"context"
	"math"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/f1monkey/spellchecker"
	"github.com/kasuganosora/npctalk/server/game/conversation"
)

const spellAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// minSpellWord 以下长度的词不纠正。
const minSpellWord = 3

// maxSpellEdits 候选词与输入的最大编辑距离。
const maxSpellEdits = 1

// 词典索引按字母集位图检索，替换一个字母会翻转两位，故检索宽度为 2，
// 再由 withinOneEdit 按编辑距离过滤。
const spellSearchBits = 2

// speller 以脚本全部关键词为词典。
type speller struct {
	sc *spellchecker.Spellchecker
}

func newSpeller(rules []conversation.Rule) (*speller, error) {
	sc, err := spellchecker.New(spellAlphabet,
		spellchecker.WithMaxErrors(spellSearchBits),
		spellchecker.WithFilterFunc(withinOneEdit),
	)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		for _, k := range r.Keys {
			for w := range strings.FieldsSeq(k) {
				if dictionaryWord(w) {
					sc.Add(w)
				}
			}
		}
	}
	return &speller{sc: sc}, nil
}

// withinOneEdit 仅保留一次编辑以内的候选；公共前后缀越长得分越高。
func withinOneEdit(src, candidate []rune, count uint) (float64, bool) {
	dist, prefix, suffix := levenshtein.Calculate(src, candidate, 0, 1, 1, 1)
	if dist > maxSpellEdits {
		return 0, false
	}
	return math.Log1p(float64(count)) * float64(1+prefix+suffix) / float64(1+dist), true
}

// dictionaryWord 排除通配词与字母表之外的字符。
func dictionaryWord(w string) bool {
	if len(w) < minSpellWord {
		return false
	}
	for _, c := range w {
		if !strings.ContainsRune(spellAlphabet, c) {
			return false
		}
	}
	return true
}

// correct 返回纠正后的输入以及是否有词被替换。
func (sp *speller) correct(typed string) (string, bool) {
	var words []string
	changed := false
	for w := range conversation.SplitWords(typed) {
		if dictionaryWord(w) && !sp.sc.IsCorrect(w) {
			if res := sp.sc.SuggestScore(w, 1); len(res.Suggestions) > 0 {
				w = res.Suggestions[0].Value
				changed = true
			}
		}
		words = append(words, w)
	}
	return strings.Join(words, " "), changed
}

// spellFix 纠正 typed；会话词典在首次使用时构建。调用方持有 s.mu。
func (e *Executor) spellFix(ctx context.Context, s *Session, d dialect, typed string) (string, bool) {
	if s.speller == nil {
		rules, err := e.rules.Rules(ctx, s.NPC, e.buildOf(s), s.Script, s.MainPC, d.ops)
		if err != nil {
			return typed, false
		}
		sp, err := newSpeller(rules)
		if err != nil {
			return typed, false
		}
		s.speller = sp
	}
	return s.speller.correct(typed)
}
