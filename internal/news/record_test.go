package news

import (
	"strings"
	"testing"
)

func TestMakeIDStable(t *testing.T) {
	a := MakeID("OpenAI", "https://openai.com/blog/post")
	b := MakeID("OpenAI", "https://openai.com/blog/post")
	if a != b {
		t.Errorf("expected stable ID, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "openai_") {
		t.Errorf("expected openai_ prefix, got %q", a)
	}
	if len(a) != len("openai_")+10 {
		t.Errorf("expected 10 hex chars after prefix, got %q", a)
	}
}

func TestMakeIDDiffersByLink(t *testing.T) {
	a := MakeID("OpenAI", "https://openai.com/blog/one")
	b := MakeID("OpenAI", "https://openai.com/blog/two")
	if a == b {
		t.Errorf("expected distinct IDs for distinct links, got %q", a)
	}
}

func TestSourceSlug(t *testing.T) {
	cases := map[string]string{
		"OpenAI":        "openai",
		"The Verge AI":  "the_verge_ai",
		"Hugging Face":  "hugging_face",
		"TechCrunch AI": "techcrunch_ai",
		"???":           "src",
		"":              "src",
	}
	for in, want := range cases {
		if got := sourceSlug(in); got != want {
			t.Errorf("sourceSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStagePredicates(t *testing.T) {
	rec := &Record{}
	if rec.Kept() || rec.Clustered() || rec.Retained() {
		t.Error("fresh record should pass no stage predicate")
	}

	rec.FilterDecision = FilterKept
	if !rec.Kept() || rec.Clustered() {
		t.Error("kept record without event should be Kept but not Clustered")
	}

	rec.EventID = "gpt5_release"
	if !rec.Clustered() || rec.Retained() {
		t.Error("clustered record without dedup keep should not be Retained")
	}

	rec.DedupDecision = DedupKept
	if !rec.Retained() {
		t.Error("expected record to be Retained")
	}

	rec.FilterDecision = FilterDropped
	if rec.Clustered() || rec.Retained() {
		t.Error("dropped record should fail every later predicate")
	}
}

func TestByID(t *testing.T) {
	recs := []*Record{{ID: "a"}, {ID: "b"}}
	idx := ByID(recs)
	if len(idx) != 2 || idx["a"] != recs[0] || idx["b"] != recs[1] {
		t.Errorf("unexpected index: %v", idx)
	}
}
