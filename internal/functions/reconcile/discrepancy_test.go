package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *OrganizedData {
	t.Helper()
	o, err := ParseOrganizedData(raw)
	require.NoError(t, err)
	return o
}

func TestParseOrganizedData_PreservesOrder(t *testing.T) {
	o := mustParse(t, `{"title":["Le Rêve"],"artist":["Picasso"],"price":[179400000],"customerAndOwnerName":["Jane"]}`)

	assert.Equal(t, []string{"title", "artist", "price", "customerAndOwnerName"}, o.Keys())
	price, ok := o.First(CategoryPrice)
	require.True(t, ok)
	assert.Equal(t, json.Number("179400000"), price)

	out, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t, `{"title":["Le Rêve"],"artist":["Picasso"],"price":[179400000],"customerAndOwnerName":["Jane"]}`, string(out))
}

func TestParseOrganizedData_Rejects(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`["artist"]`,
		`{"artist":"Picasso"}`,
		`{"artist":null}`,
	} {
		_, err := ParseOrganizedData(raw)
		assert.Error(t, err, raw)
	}
}

func TestSanitize_RemovesFalsyValues(t *testing.T) {
	o := mustParse(t, `{"artist":["Picasso",null,"",false],"price":[0,0.0,100,"0"],"customerAndOwnerName":[]}`)

	s := Sanitize(o)

	artist, _ := s.Get(CategoryArtist)
	assert.Equal(t, []interface{}{"Picasso"}, artist)

	// "0" is a non-empty string and survives
	price, _ := s.Get(CategoryPrice)
	assert.Equal(t, []interface{}{json.Number("100"), "0"}, price)

	owner, ok := s.Get(CategoryOwner)
	assert.True(t, ok)
	assert.Empty(t, owner)
	assert.Equal(t, o.Keys(), s.Keys())

	for _, key := range s.Keys() {
		values, _ := s.Get(key)
		for _, v := range values {
			assert.False(t, IsFalsy(v), "%s kept falsy value %v", key, v)
		}
	}
}

func TestGetDiscrepancies(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Discrepancy
	}{
		{
			name: "all equal after trim and case folding",
			raw:  `{"artist":["Pablo Picasso"," pablo picasso ","PABLO PICASSO"]}`,
			want: []Discrepancy{},
		},
		{
			name: "single and empty categories never disagree",
			raw:  `{"artist":["Picasso"],"title":[]}`,
			want: []Discrepancy{},
		},
		{
			name: "numbers compare by their decimal form",
			raw:  `{"price":[1500000,"1500000",1.5e6]}`,
			want: []Discrepancy{},
		},
		{
			name: "single-element arrays compare like their element",
			raw:  `{"price":[["155000000"],"155000000",[155000000]]}`,
			want: []Discrepancy{},
		},
		{
			name: "objects all read the same",
			raw:  `{"title":[{"a":1},{"b":2}]}`,
			want: []Discrepancy{},
		},
		{
			name: "arrays with different elements disagree",
			raw:  `{"artist":[["Picasso","Braque"],"Picasso"]}`,
			want: []Discrepancy{
				{Key: "artist", Collection: []interface{}{[]interface{}{"Picasso", "Braque"}, "Picasso"}},
			},
		},
		{
			name: "mismatch reports the whole collection",
			raw:  `{"artist":["Picasso","Picasso"],"title":["Le Rêve","The Dream"]}`,
			want: []Discrepancy{
				{Key: "title", Collection: []interface{}{"Le Rêve", "The Dream"}},
			},
		},
		{
			name: "first element is the reference",
			raw:  `{"customerAndOwnerName":["Jane","Jane","John"],"price":[100,200]}`,
			want: []Discrepancy{
				{Key: "customerAndOwnerName", Collection: []interface{}{"Jane", "Jane", "John"}},
				{Key: "price", Collection: []interface{}{json.Number("100"), json.Number("200")}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetDiscrepancies(Sanitize(mustParse(t, tt.raw)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscrepancies_MarshalLikeScriptOutput(t *testing.T) {
	got := GetDiscrepancies(mustParse(t, `{"artist":["Picasso","Monet"]}`))

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, `[{"key":"artist","collection":["Picasso","Monet"]}]`, string(out))
	assert.Equal(t, []string{"artist"}, DiscrepantKeys(got))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "12.5", stringify(json.Number("12.50")))
	assert.Equal(t, "1000", stringify(json.Number("1e3")))
	assert.Equal(t, "true", stringify(true))
	assert.Equal(t, "null", stringify(nil))
	assert.Equal(t, "[object Object]", stringify(map[string]interface{}{"a": 1}))
	assert.Equal(t, "1,b", stringify([]interface{}{1, "b"}))
	assert.Equal(t, "1,,2,3", stringify([]interface{}{json.Number("1"), nil, []interface{}{json.Number("2"), "3"}}))
	assert.Equal(t, "", stringify([]interface{}{}))
}
