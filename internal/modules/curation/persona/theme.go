package persona

import (
	"fmt"
	"strings"
)

// Theme identifies a curation persona. The set is closed: anything not
// listed in Themes is rejected.
type Theme string

const (
	ThemeShortForm   Theme = "숏폼 러버 MZ 스타일"
	ThemeCinephile   Theme = "영화덕후의 최애 마이너영화"
	ThemeCalm        Theme = "편안하고 잔잔한 감성 추구"
	ThemeMelancholy  Theme = "찝찝한 여운의 우울한 명작들"
	ThemeComedy      Theme = "뇌 빼고도 볼 수 있는 레전드 코미디"
	ThemeActionCrime Theme = "심장 터질 것 같은 액션 범죄 영화"
	ThemeFantasy     Theme = "세계관 과몰입 판타지러버"
	ThemeTrueStory   Theme = "이거 실화야? 실화야."
	ThemeHorror      Theme = "여름에 찰떡인 역대급 호러"
	ThemeRomance     Theme = "설레고 싶은 날의 로맨스"
	ThemeAnimation   Theme = "3D 보단 2D"
)

// Themes in ticket order.
var Themes = []Theme{
	ThemeShortForm,
	ThemeCinephile,
	ThemeCalm,
	ThemeMelancholy,
	ThemeComedy,
	ThemeActionCrime,
	ThemeFantasy,
	ThemeTrueStory,
	ThemeHorror,
	ThemeRomance,
	ThemeAnimation,
}

// ParseTheme normalizes surrounding whitespace, which older clients send.
func ParseTheme(raw string) (Theme, bool) {
	t := Theme(strings.TrimSpace(raw))
	for _, known := range Themes {
		if known == t {
			return t, true
		}
	}
	return t, false
}

type UnknownThemeError struct {
	Theme    string
	TicketID int64
}

func (e *UnknownThemeError) Error() string {
	switch {
	case e.Theme != "":
		return fmt.Sprintf("unknown theme %q", e.Theme)
	case e.TicketID != 0:
		return fmt.Sprintf("no theme for ticket %d", e.TicketID)
	default:
		return "theme or ticket id required"
	}
}
