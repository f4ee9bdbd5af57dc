package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "simple list",
			raw:  "NUDT;Guofang Keji Daxue",
			want: []string{"NUDT", "Guofang Keji Daxue"},
		},
		{
			name: "surrounding whitespace",
			raw:  " CAEP ; Ninth Academy ",
			want: []string{"CAEP", "Ninth Academy"},
		},
		{
			name: "empty segments dropped",
			raw:  "HIT;;; ",
			want: []string{"HIT"},
		},
		{
			name: "single alias",
			raw:  "BUAA",
			want: []string{"BUAA"},
		},
		{
			name: "empty",
			raw:  "",
			want: nil,
		},
		{
			name: "only whitespace",
			raw:  "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitAliases(tt.raw))
		})
	}
}

func TestAliasList_RoundTrip(t *testing.T) {
	e := &ReferenceEntity{Aliases: []string{"NUDT", "Guofang Keji Daxue"}}
	assert.Equal(t, "NUDT;Guofang Keji Daxue", e.AliasList())
	assert.Equal(t, e.Aliases, SplitAliases(e.AliasList()))
}
