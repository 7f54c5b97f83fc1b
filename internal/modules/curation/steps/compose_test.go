package steps

import (
	"strings"
	"testing"

	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
)

func testDescriptor() persona.Descriptor {
	return persona.Descriptor{
		Theme:       persona.ThemeCalm,
		TicketID:    3,
		Style:       "조용하고 다정한 말투",
		Instruction: "하루를 마무리하는 느낌으로 말해 주세요.",
	}
}

func TestComposeCuration(t *testing.T) {
	d := testDescriptor()
	p := ComposeCuration(d, "  비 오는 날 볼 영화  ", []string{"리틀 포레스트", "패터슨"})

	for _, want := range []string{d.Style, d.Instruction, string(d.Theme), "나열"} {
		if !strings.Contains(p.System, want) {
			t.Fatalf("system instruction missing %q:\n%s", want, p.System)
		}
	}
	if !strings.Contains(p.User, "사용자 요청: 비 오는 날 볼 영화\n") {
		t.Fatalf("user turn missing trimmed query:\n%s", p.User)
	}
	if !strings.Contains(p.User, "리틀 포레스트, 패터슨") {
		t.Fatalf("user turn missing titles in order:\n%s", p.User)
	}

	msgs := p.Messages()
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	d := testDescriptor()
	a := ComposeCuration(d, "q", []string{"a", "b"})
	b := ComposeCuration(d, "q", []string{"a", "b"})
	if a != b {
		t.Fatalf("compose not deterministic")
	}
}

func TestComposeDetailSkipsEmptyFacts(t *testing.T) {
	p := ComposeDetail(testDescriptor(), DetailFacts{Title: "패터슨", Genres: []string{"드라마"}})
	if !strings.Contains(p.User, "제목: 패터슨") || !strings.Contains(p.User, "장르: 드라마") {
		t.Fatalf("unexpected user turn:\n%s", p.User)
	}
	for _, absent := range []string{"감독:", "개봉일:", "상영시간:", "줄거리:"} {
		if strings.Contains(p.User, absent) {
			t.Fatalf("user turn should not contain %q:\n%s", absent, p.User)
		}
	}
}

func TestComposePromptUnknownTheme(t *testing.T) {
	cat, err := persona.Default()
	if err != nil {
		t.Fatalf("persona.Default: %v", err)
	}
	if _, err := ComposePrompt(cat, "nonexistent-theme", "q", nil); !persona.IsUnknownTheme(err) {
		t.Fatalf("expected UnknownThemeError, got %v", err)
	}
	p, err := ComposePrompt(cat, string(persona.ThemeHorror), "q", nil)
	if err != nil || p.System == "" {
		t.Fatalf("ComposePrompt: err=%v", err)
	}
}
