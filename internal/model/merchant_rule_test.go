package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchType(t *testing.T) {
	tests := []struct {
		input string
		want  MatchType
	}{
		{"exact", MatchExact},
		{"CONTAINS", MatchContains},
		{"startswith", MatchStartsWith},
		{" regex ", MatchRegex},
		{"fuzzy", MatchContains},
		{"", MatchContains},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMatchType(tt.input))
		})
	}
}

func TestDayClass_Matches(t *testing.T) {
	saturday := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
	tuesday := time.Date(2024, 3, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		day    DayClass
		name   string
		onSat  bool
		onTues bool
	}{
		{name: "any", day: DayAny, onSat: true, onTues: true},
		{name: "weekend", day: DayWeekend, onSat: true, onTues: false},
		{name: "weekday", day: DayWeekday, onSat: false, onTues: true},
		{name: "specific day", day: DayTuesday, onSat: false, onTues: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.onSat, tt.day.Matches(saturday))
			assert.Equal(t, tt.onTues, tt.day.Matches(tuesday))
		})
	}
}

func TestParseDayClass(t *testing.T) {
	d, err := ParseDayClass("Weekend")
	require.NoError(t, err)
	assert.Equal(t, DayWeekend, d)

	_, err = ParseDayClass("someday")
	assert.Error(t, err)
}

func TestMerchantRule_Accuracy(t *testing.T) {
	r := &MerchantRule{TimesApplied: 10, TimesOverridden: 2}
	assert.InDelta(t, 0.8, r.Accuracy(), 1e-9)

	empty := &MerchantRule{}
	assert.Equal(t, 0.0, empty.Accuracy())
}

func TestParseClassification(t *testing.T) {
	c, err := ParseClassification("Business")
	require.NoError(t, err)
	assert.Equal(t, ClassificationBusiness, c)

	_, err = ParseClassification("corporate")
	assert.Error(t, err)
}

func TestAccountType_DefaultClassification(t *testing.T) {
	assert.Equal(t, ClassificationBusiness, AccountBusiness.DefaultClassification())
	assert.Equal(t, ClassificationPersonal, AccountPersonal.DefaultClassification())
	assert.Equal(t, ClassificationPersonal, AccountSavings.DefaultClassification())
}
