package index

import "fmt"

// Field identifies one column of the fixed document schema.
type Field uint8

const (
	FieldTitle Field = iota
	FieldContent
	FieldID
	FieldDate
)

// NumIndexedFields is the number of fields that carry postings.
const NumIndexedFields = 2

// IndexedFields lists the tokenised fields in scoring order.
var IndexedFields = [NumIndexedFields]Field{FieldTitle, FieldContent}

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldContent:
		return "content"
	case FieldID:
		return "id"
	case FieldDate:
		return "date"
	default:
		return fmt.Sprintf("field(%d)", uint8(f))
	}
}

// Indexed reports whether the field has postings.
func (f Field) Indexed() bool {
	return f == FieldTitle || f == FieldContent
}
