package feeder

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// loadJSON reads a JSON array of objects. Values keep their JSON text, so
// large numeric IDs are not reformatted.
func loadJSON(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode JSON %s: invalid document", path)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("decode JSON %s: expected an array of objects", path)
	}

	var records []Record
	for i, item := range doc.Array() {
		if !item.IsObject() {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		record := make(Record)
		item.ForEach(func(key, value gjson.Result) bool {
			record[key.String()] = value.String()
			return true
		})
		if len(record) == 0 {
			return nil, fmt.Errorf("record %d is empty", i)
		}
		records = append(records, record)
	}
	return records, nil
}
