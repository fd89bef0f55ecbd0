package validators

import "go.mongodb.org/mongo-driver/bson"

var PricingRuleValidator = schema(
	[]string{"room_id", "rule_type", "fixed_price", "priority", "is_active", "created_at"},
	bson.M{
		"room_id":        str(1, 64),
		"name":           str(0, 100),
		"rule_type":      enum("day_of_week", "date_range", "fixed"),
		"day_of_week":    intRange(0, 6),
		"start_date":     date(),
		"end_date":       date(),
		"fixed_price":    decimal(),
		"priority":       intRange(0, 1000),
		"minimum_nights": intRange(0, 365),
		"is_active":      bson.M{"bsonType": "bool"},
		"created_at":     date(),
		"updated_at":     date(),
	},
)

var PriceCacheValidator = schema(
	[]string{"_id", "price_band", "room_cache_version", "data_valid_until", "refreshed_at"},
	bson.M{
		"_id":                str(1, 64),
		"price_band":         intRange(0, 4),
		"price_band_name":    str(0, 32),
		"room_cache_version": intRange(0, 1<<62),
		"data_valid_until":   date(),
		"refreshed_at":       date(),
		"window_start":       date(),
	},
)
