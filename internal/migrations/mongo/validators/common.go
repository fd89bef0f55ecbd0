package validators

import "go.mongodb.org/mongo-driver/bson"

// Go ints encode as int32 when they fit, so both widths are accepted.
var integer = []string{"int", "long"}

func str(minLength, maxLength int) bson.M {
	m := bson.M{"bsonType": "string"}
	if minLength > 0 {
		m["minLength"] = minLength
	}
	if maxLength > 0 {
		m["maxLength"] = maxLength
	}
	return m
}

func enum(values ...string) bson.M {
	return bson.M{"bsonType": "string", "enum": values}
}

func intRange(minimum, maximum int64) bson.M {
	return bson.M{"bsonType": integer, "minimum": minimum, "maximum": maximum}
}

// Money, percentages and rates are stored as Decimal128.
func decimal() bson.M {
	return bson.M{"bsonType": "decimal"}
}

func date() bson.M {
	return bson.M{"bsonType": "date"}
}

func schema(required []string, properties bson.M) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":             "object",
			"required":             required,
			"additionalProperties": true,
			"properties":           properties,
		},
	}
}
