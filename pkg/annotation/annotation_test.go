package annotation

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
)

const batchCSV = `Answer.lang,Answer.morning_start,Answer.morning_end,Answer.night_start,Answer.night_end,Answer.comment
EN,6:00,11:00,21:00,2:00,
EN,6:00,11:00,21:00,2:00,fun
EN,6:00,11:00,21:00,2:00,
EN,6:00,11:00,21:00,2:00,
EN,18:00,11:00,9:00 PM,2:00 AM,
DE,8:00,12:00,22:00,1:00,
EN,6:00,,21:00,2:00,
`

func TestReadCorrectAndCount(t *testing.T) {
	b, err := Read(strings.NewReader(batchCSV), "en", WithExpressions("morning", "night"), WithDominance(4))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := Stats{Rows: 7, Incomplete: 1, OtherLanguage: 1}
	if diff := cmp.Diff(want, b.Stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if n := b.CorrectAMPM(logger); n != 1 {
		t.Errorf("CorrectAMPM() = %d, want 1", n)
	}

	got := b.Boundaries()
	wantB := distribution.Boundaries{
		Start: distribution.Distribution{"morning": {6: 5}, "night": {21: 5}},
		End:   distribution.Distribution{"morning": {11: 5}, "night": {2: 5}},
	}
	if diff := cmp.Diff(wantB, got); diff != "" {
		t.Errorf("Boundaries() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadKeepsMixedLanguages(t *testing.T) {
	b, err := Read(strings.NewReader(batchCSV), "en", WithExpressions("morning", "night"))
	if err != nil {
		t.Fatal(err)
	}
	if b.Stats.OtherLanguage != 0 || len(b.Times["morning"].Start) != 6 {
		t.Errorf("below the dominance threshold no rows should be dropped: %+v", b.Stats)
	}
}

const extrasCSV = `Answer.lang,Answer.morning_start,Answer.morning_end,Answer.morning_translation,Answer.other_source,Answer.other_translation,Answer.other_start,Answer.other_end,Answer.comment
DE,6:00,11:00,Morgen,dawn,Morgengrauen,5:00,7:00,Gut
DE,7:00,10:00,morgen,german,German,9:00,10:00,gut
DE,6:00,11:00,,dusk,Abenddämmerung,7 PM,8 PM,
DE,6:00,11:00,Vormittag,,Mittag,12:00,13:00,
DE,6:00,11:00,,dawn,Morgengrauen,5:30,,
`

func TestReadCarriesTranslationsOthersAndComments(t *testing.T) {
	b, err := Read(strings.NewReader(extrasCSV), "de", WithExpressions("morning"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff([]string{"morgen", "morgen", "vormittag"}, b.Translations["morning"]); diff != "" {
		t.Errorf("Translations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"gut": 2}, b.Comments); diff != "" {
		t.Errorf("Comments mismatch (-want +got):\n%s", diff)
	}
	want := map[string]*Edges{
		"morgengrauen":   {Start: []float64{5}, End: []float64{7}},
		"abenddämmerung": {Start: []float64{19}, End: []float64{20}},
	}
	if diff := cmp.Diff(want, b.Additional); diff != "" {
		t.Errorf("Additional mismatch (-want +got):\n%s", diff)
	}

	got := b.AdditionalBoundaries()
	if got.Start["abenddämmerung"][19] != 1 || got.End["morgengrauen"][7] != 1 {
		t.Errorf("AdditionalBoundaries() = %+v", got)
	}
}

func TestReadWithoutOptionalColumns(t *testing.T) {
	b, err := Read(strings.NewReader(batchCSV), "en", WithExpressions("morning", "night"))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Translations) != 0 || len(b.Additional) != 0 {
		t.Errorf("Translations = %v, Additional = %v; want none", b.Translations, b.Additional)
	}
	if b.Comments["fun"] != 1 {
		t.Errorf("Comments = %v, want fun counted once", b.Comments)
	}
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader(batchCSV), "en", WithExpressions("evening"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Read() error = %v, want ErrMissingColumn", err)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "19:30", want: 19.5},
		{in: "7:30 PM", want: 19.5},
		{in: "7 p.m.", want: 19},
		{in: "12 am", want: 0},
		{in: "12:15 pm", want: 12.25},
		{in: "0:00", want: 0},
		{in: "24:00", want: 0},
		{in: "13 pm", wantErr: true},
		{in: "7:75", wantErr: true},
		{in: "", wantErr: true},
		{in: "noonish", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCorrectRespectsPreviousEdge(t *testing.T) {
	base := []float64{22, 22, 22, 22, 10}

	times := slices.Clone(base)
	if n := correct(times, 23, true); n != 0 {
		t.Errorf("flip landing before the previous edge was applied: %v", times)
	}
	times = slices.Clone(base)
	if n := correct(times, 18, true); n != 1 || times[4] != 22 {
		t.Errorf("correct() = %d, %v", n, times)
	}
}
