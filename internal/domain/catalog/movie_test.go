package catalog

import (
	"testing"

	"gorm.io/datatypes"
)

func TestEmbeddingText(t *testing.T) {
	overview := "가족이 반지하에 산다"
	m := &Movie{
		TitleKo:    "기생충",
		OverviewKo: &overview,
		Genres:     datatypes.JSON(`["드라마","스릴러"]`),
	}
	want := "기생충\n드라마 스릴러\n가족이 반지하에 산다"
	if got := m.EmbeddingText(); got != want {
		t.Fatalf("EmbeddingText: got=%q want=%q", got, want)
	}
}

func TestStringListAcceptsBareString(t *testing.T) {
	got := stringList(datatypes.JSON(`"봉준호"`))
	if len(got) != 1 || got[0] != "봉준호" {
		t.Fatalf("stringList: got=%v", got)
	}
}

func TestIsRestricted(t *testing.T) {
	for rating, want := range map[string]bool{"19": true, "NC-17": true, "15": false, "": false, "r": false} {
		if got := IsRestricted(rating); got != want {
			t.Fatalf("IsRestricted(%q): got=%v want=%v", rating, got, want)
		}
	}
}
