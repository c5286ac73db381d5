package scheduler

import (
	"encoding/json"
	"reflect"
	"testing"

	"gorm.io/datatypes"
)

func TestDecodeTags(t *testing.T) {
	cases := []struct {
		name string
		raw  datatypes.JSON
		want []string
	}{
		{name: "nil", raw: nil, want: nil},
		{name: "empty", raw: datatypes.JSON{}, want: nil},
		{name: "list", raw: mustJSON(t, []string{"a", "b"}), want: []string{"a", "b"}},
		{name: "malformed", raw: datatypes.JSON(`not json`), want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeTags(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("decodeTags(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func mustJSON(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return datatypes.JSON(b)
}
