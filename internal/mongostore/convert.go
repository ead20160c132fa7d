// File path: internal/mongostore/convert.go
package mongostore

import (
	"encoding/json"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nicodishanthj/planbuilder/internal/docstore"
)

// toBSON prepares a document for the driver. json.Number is a string type
// and would otherwise be stored as text.
func toBSON(doc docstore.Document) bson.M {
	out := make(bson.M, len(doc))
	for key, value := range doc {
		out[key] = toBSONValue(value)
	}
	return out
}

func toBSONValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case docstore.Document:
		return toBSON(v)
	case map[string]any:
		return toBSON(v)
	case []any:
		out := make(bson.A, len(v))
		for i, item := range v {
			out[i] = toBSONValue(item)
		}
		return out
	default:
		return v
	}
}

// fromBSON converts a decoded document into plain Go values and drops the
// server-assigned _id.
func fromBSON(doc bson.M) docstore.Document {
	out := make(docstore.Document, len(doc))
	for key, value := range doc {
		if key == "_id" {
			continue
		}
		out[key] = fromBSONValue(value)
	}
	return out
}

func fromBSONValue(value any) any {
	switch v := value.(type) {
	case bson.M:
		return map[string]any(fromBSON(v))
	case bson.D:
		out := make(map[string]any, len(v))
		for _, elem := range v {
			out[elem.Key] = fromBSONValue(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = fromBSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = fromBSONValue(item)
		}
		return out
	case int32:
		return json.Number(strconv.FormatInt(int64(v), 10))
	case int64:
		return json.Number(strconv.FormatInt(v, 10))
	case float64:
		return json.Number(strconv.FormatFloat(v, 'f', -1, 64))
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return v.Hex()
	default:
		return v
	}
}
