package steps

import (
	"fmt"
	"strings"

	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
)

// Prompt is the two-turn generation request.
type Prompt struct {
	System string
	User   string
}

func (p Prompt) Messages() []engine.Message {
	return []engine.Message{engine.System(p.System), engine.User(p.User)}
}

var curationRules = []string{
	"영화 제목을 하나씩 나열하거나 소개하지 마세요.",
	"영화들이 함께 만드는 전체적인 분위기와 감성에 대해 이야기하세요.",
	"'~입니다', '~습니다' 같은 딱딱한 존댓말 어미를 쓰지 마세요.",
	"'Here is', 'Output:', '답변:' 같은 머리말이나 형식 표시를 붙이지 마세요.",
	"생각 과정이나 내부 추론 표시(<think> 등)를 출력하지 마세요.",
}

var detailRules = []string{
	"영화 제목을 첫머리에 반복하지 마세요.",
	"줄거리를 그대로 옮기지 말고 이 영화만의 매력을 이야기하세요.",
	"'~입니다', '~습니다' 같은 딱딱한 존댓말 어미를 쓰지 마세요.",
	"'Here is', 'Output:', '답변:' 같은 머리말이나 형식 표시를 붙이지 마세요.",
	"생각 과정이나 내부 추론 표시(<think> 등)를 출력하지 마세요.",
}

func systemInstruction(d persona.Descriptor, task string, rules []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 '%s' 테마의 영화 큐레이터입니다.\n\n", d.Theme)
	b.WriteString("[말투]\n")
	b.WriteString(d.Style)
	b.WriteString("\n\n[지침]\n")
	b.WriteString(d.Instruction)
	b.WriteString("\n\n[작업]\n")
	b.WriteString(task)
	b.WriteString("\n\n[규칙]\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ComposeCuration builds the curator comment prompt. Titles are grounding
// only and are never meant to be enumerated back.
func ComposeCuration(d persona.Descriptor, userQuery string, titles []string) Prompt {
	system := systemInstruction(d, "아래 영화 모음 전체를 한두 문장의 큐레이터 코멘트로 소개하세요.", curationRules)

	var b strings.Builder
	fmt.Fprintf(&b, "사용자 요청: %s\n", strings.TrimSpace(userQuery))
	if len(titles) > 0 {
		fmt.Fprintf(&b, "참고용 영화 모음: %s\n", strings.Join(titles, ", "))
	}
	b.WriteString("큐레이터 코멘트:")
	return Prompt{System: system, User: b.String()}
}

// ComposePrompt resolves theme against the catalog and builds the curation
// prompt. Unknown themes fail with *persona.UnknownThemeError.
func ComposePrompt(cat *persona.Catalog, theme, userQuery string, titles []string) (Prompt, error) {
	d, err := cat.Lookup(theme)
	if err != nil {
		return Prompt{}, err
	}
	return ComposeCuration(d, userQuery, titles), nil
}

// DetailFacts is the single-movie grounding for the detail prompt.
type DetailFacts struct {
	Title       string
	Overview    string
	Genres      []string
	Directors   []string
	ReleaseDate string
	Runtime     int
}

// ComposeDetail builds the per-movie description prompt.
func ComposeDetail(d persona.Descriptor, f DetailFacts) Prompt {
	system := systemInstruction(d, "아래 영화 한 편을 두세 문장으로 소개하세요.", detailRules)

	var b strings.Builder
	fmt.Fprintf(&b, "제목: %s\n", f.Title)
	if len(f.Genres) > 0 {
		fmt.Fprintf(&b, "장르: %s\n", strings.Join(f.Genres, ", "))
	}
	if len(f.Directors) > 0 {
		fmt.Fprintf(&b, "감독: %s\n", strings.Join(f.Directors, ", "))
	}
	if f.ReleaseDate != "" {
		fmt.Fprintf(&b, "개봉일: %s\n", f.ReleaseDate)
	}
	if f.Runtime > 0 {
		fmt.Fprintf(&b, "상영시간: %d분\n", f.Runtime)
	}
	if ov := strings.TrimSpace(f.Overview); ov != "" {
		fmt.Fprintf(&b, "줄거리: %s\n", ov)
	}
	b.WriteString("소개:")
	return Prompt{System: system, User: b.String()}
}
