package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Well-known categories the organizer is asked to fill.
const (
	CategoryArtist = "artist"
	CategoryTitle  = "title"
	CategoryPrice  = "price"
	CategoryOwner  = "customerAndOwnerName"
)

// OrganizedData holds named value collections in the order the organizer
// returned them. Numbers are kept as json.Number.
type OrganizedData struct {
	categories *orderedmap.OrderedMap[string, []interface{}]
}

func NewOrganizedData() *OrganizedData {
	return &OrganizedData{categories: orderedmap.New[string, []interface{}]()}
}

// ParseOrganizedData decodes the organizer's JSON object. Every member must be
// an array.
func ParseOrganizedData(raw string) (*OrganizedData, error) {
	members := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal([]byte(raw), members); err != nil {
		return nil, fmt.Errorf("organized data is not a JSON object: %w", err)
	}

	out := NewOrganizedData()
	for pair := members.Oldest(); pair != nil; pair = pair.Next() {
		dec := json.NewDecoder(bytes.NewReader(pair.Value))
		dec.UseNumber()

		var values []interface{}
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("category %q is not an array: %w", pair.Key, err)
		}
		if values == nil {
			// a JSON null member
			return nil, fmt.Errorf("category %q is not an array", pair.Key)
		}
		out.Set(pair.Key, values)
	}
	return out, nil
}

func (o *OrganizedData) Set(key string, values []interface{}) {
	o.categories.Set(key, values)
}

func (o *OrganizedData) Get(key string) ([]interface{}, bool) {
	return o.categories.Get(key)
}

// First returns the reference value of a category.
func (o *OrganizedData) First(key string) (interface{}, bool) {
	values, ok := o.categories.Get(key)
	if !ok || len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

func (o *OrganizedData) Keys() []string {
	keys := make([]string, 0, o.categories.Len())
	for pair := o.categories.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (o *OrganizedData) Len() int {
	return o.categories.Len()
}

func (o *OrganizedData) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.categories)
}
