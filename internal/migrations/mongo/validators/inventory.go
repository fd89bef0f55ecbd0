package validators

import "go.mongodb.org/mongo-driver/bson"

var RoomValidator = schema(
	[]string{"_id", "name", "default_price", "total_units", "is_active", "version", "cache_version", "created_at"},
	bson.M{
		"_id":              str(1, 64),
		"accommodation_id": str(0, 64),
		"name":             str(2, 100),
		"category":         str(0, 50),
		"default_price":    decimal(),
		"total_units":      intRange(0, 10000),
		"is_active":        bson.M{"bsonType": "bool"},
		"version":          intRange(0, 1<<62),
		"cache_version":    intRange(0, 1<<62),
		"created_at":       date(),
		"updated_at":       date(),
	},
)

var OverrideValidator = schema(
	[]string{"room_id", "date", "updated_at"},
	bson.M{
		"room_id":         str(1, 64),
		"date":            date(),
		"is_available":    bson.M{"bsonType": "bool"},
		"available_count": intRange(0, 10000),
		"override_price":  decimal(),
		"note":            str(0, 200),
		"updated_at":      date(),
	},
)

var LockValidator = schema(
	[]string{"room_id", "check_in", "check_out", "quantity", "lock_type", "status", "created_at"},
	bson.M{
		"room_id":        str(1, 64),
		"check_in":       date(),
		"check_out":      date(),
		"quantity":       intRange(1, 100),
		"lock_type":      enum("soft", "hard"),
		"status":         enum("active", "released", "expired", "promoted"),
		"expires_at":     date(),
		"reservation_id": str(0, 64),
		"booking_id":     str(0, 64),
		"released_at":    date(),
		"release_reason": str(0, 64),
		"created_at":     date(),
	},
)
