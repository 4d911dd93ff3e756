package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseRecord_Merge_FillsEmptyFields(t *testing.T) {
	first := &CaseRecord{
		Key:      CaseKey{Number: "077-CR-0123", CourtID: "patanhc"},
		CaseType: "फौजदारी",
		Hearings: []HearingRecord{{SerialNo: "1"}},
	}
	second := &CaseRecord{
		Key:       first.Key,
		CaseType:  "should not overwrite",
		Division:  "इजलास नं. २",
		Plaintiff: "नेपाल सरकार",
		Hearings:  []HearingRecord{{SerialNo: "4"}},
	}

	first.Merge(second)

	assert.Equal(t, "फौजदारी", first.CaseType, "first observation wins")
	assert.Equal(t, "इजलास नं. २", first.Division, "empty field filled")
	assert.Equal(t, "नेपाल सरकार", first.Plaintiff)
	require.Len(t, first.Hearings, 2, "hearings from both sub-units kept")
}

func TestCaseRecord_Merge_Nil(t *testing.T) {
	c := &CaseRecord{Key: CaseKey{Number: "1", CourtID: "x"}}
	c.Merge(nil)
	assert.Empty(t, c.Hearings)
}

func TestADDate(t *testing.T) {
	ad := ADDate("2080-01-01")
	require.NotNil(t, ad)
	assert.Equal(t, time.Date(2023, time.April, 14, 0, 0, 0, 0, time.UTC), *ad)

	assert.Nil(t, ADDate(""))
	assert.Nil(t, ADDate("**** ** **"))
}
