package review_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/MrWong99/subreconcile/internal/dictionary"
	"github.com/MrWong99/subreconcile/internal/review"
)

func TestCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pair review.Pair
		want [][2]string // {variant, correct}
	}{
		{
			name: "partial word widened",
			pair: review.Pair{Original: "I hear wispers", Corrected: "I hear whispers"},
			want: [][2]string{{"wispers", "whispers"}},
		},
		{
			name: "transposition inside one word",
			pair: review.Pair{Original: "we recieve it", Corrected: "we receive it"},
			want: [][2]string{{"recieve", "receive"}},
		},
		{
			name: "cjk character keeps its neighbours",
			pair: review.Pair{Original: "今天天气很好", Corrected: "今天天汽很好"},
			want: [][2]string{{"天气很", "天汽很"}},
		},
		{
			name: "cjk deletion keeps its neighbours",
			pair: review.Pair{Original: "我们去玩公园", Corrected: "我们去公园"},
			want: [][2]string{{"去玩公", "去公"}},
		},
		{
			name: "cjk trailing deletion",
			pair: review.Pair{Original: "我们去公园玩", Corrected: "我们去公园"},
		},
		{
			name: "lone cjk character",
			pair: review.Pair{Original: "气", Corrected: "汽"},
		},
		{
			name: "punctuation only",
			pair: review.Pair{Original: "hello world", Corrected: "hello, world"},
		},
		{
			name: "unrelated rewrite",
			pair: review.Pair{Original: "go north", Corrected: "go xylophone"},
		},
		{
			name: "no change",
			pair: review.Pair{Original: "same", Corrected: "same"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := prepared(t, []review.Pair{tc.pair})
			cands, err := s.Candidates(0)
			if err != nil {
				t.Fatalf("Candidates: %v", err)
			}
			var got [][2]string
			for _, c := range cands {
				got = append(got, [2]string{c.Variant, c.Correct})
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Candidates = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCandidates_RespectDecisions(t *testing.T) {
	t.Parallel()

	pair := review.Pair{Original: "I hear wispers", Corrected: "I hear whispers"}

	t.Run("rejected group", func(t *testing.T) {
		t.Parallel()
		s := prepared(t, []review.Pair{pair})
		if err := s.SetAll(0, false); err != nil {
			t.Fatalf("SetAll: %v", err)
		}
		if cands, _ := s.Candidates(0); len(cands) != 0 {
			t.Errorf("Candidates = %+v, want none", cands)
		}
	})

	t.Run("original chosen", func(t *testing.T) {
		t.Parallel()
		s := prepared(t, []review.Pair{pair})
		if err := s.SetChoice(0, review.ChoiceOriginal); err != nil {
			t.Fatalf("SetChoice: %v", err)
		}
		if cands, _ := s.Candidates(0); len(cands) != 0 {
			t.Errorf("Candidates = %+v, want none", cands)
		}
	})
}

func TestLearn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := prepared(t, []review.Pair{
		{Original: "I hear wispers", Corrected: "I hear whispers"},
		{Original: "wispers again", Corrected: "whispers again"},
		{Original: "nothing here", Corrected: "nothing here"},
	})
	dict := newDictionary(t)

	n, err := s.Learn(ctx, dict)
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if n != 1 {
		t.Fatalf("Learn = %d, want 1 deduplicated rule", n)
	}

	entries := dict.Entries()
	if len(entries) != 1 {
		t.Fatalf("dictionary has %d entries, want 1", len(entries))
	}
	if entries[0].Correct != "whispers" || !reflect.DeepEqual(entries[0].Variants, []string{"wispers"}) {
		t.Errorf("entry = %+v, want whispers <- [wispers]", entries[0])
	}

	res, err := dict.Apply(ctx, "the wispers")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Text != "the whispers" {
		t.Errorf("Apply = %q, want %q", res.Text, "the whispers")
	}
}

func TestLearn_ScriptRuleKeepsContext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := prepared(t, []review.Pair{{Original: "今天天气很好", Corrected: "今天天汽很好"}})
	dict := newDictionary(t)
	if _, err := s.Learn(ctx, dict); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	tests := []struct {
		text string
		want string
	}{
		{text: "空气很冷", want: "空气很冷"},
		{text: "天气预报", want: "天气预报"},
		{text: "明天天气很热", want: "明天天汽很热"},
	}
	for _, tc := range tests {
		res, err := dict.Apply(ctx, tc.text)
		if err != nil {
			t.Fatalf("Apply(%q): %v", tc.text, err)
		}
		if res.Text != tc.want {
			t.Errorf("Apply(%q) = %q, want %q", tc.text, res.Text, tc.want)
		}
	}
}

type rejectingLearner struct{ calls int }

func (l *rejectingLearner) AddManual(context.Context, string, ...string) (dictionary.Entry, error) {
	l.calls++
	return dictionary.Entry{}, errors.New("read-only")
}

func TestLearn_Errors(t *testing.T) {
	t.Parallel()

	s := prepared(t, []review.Pair{
		{Original: "I hear wispers", Corrected: "I hear whispers"},
		{Original: "今天天气很好", Corrected: "今天天汽很好"},
	})
	l := &rejectingLearner{}

	n, err := s.Learn(context.Background(), l)
	if err == nil {
		t.Fatal("Learn succeeded against a failing learner")
	}
	if n != 0 {
		t.Errorf("Learn = %d, want 0", n)
	}
	if l.calls != 2 {
		t.Errorf("learner called %d times, want 2", l.calls)
	}
}
