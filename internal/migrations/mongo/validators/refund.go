package validators

import "go.mongodb.org/mongo-driver/bson"

var RefundPolicyValidator = schema(
	[]string{"accommodation_id", "name", "is_active", "tiers", "created_at"},
	bson.M{
		"accommodation_id": str(1, 64),
		"name":             str(2, 100),
		"is_active":        bson.M{"bsonType": "bool"},
		"tiers": bson.M{
			"bsonType": "array",
			"minItems": 1,
			"maxItems": 20,
			"items": bson.M{
				"bsonType": "object",
				"required": []string{"min_days_before_check_in", "refund_percentage"},
				"properties": bson.M{
					"min_days_before_check_in": intRange(0, 3650),
					"refund_percentage":        decimal(),
				},
			},
		},
		"created_at": date(),
		"updated_at": date(),
	},
)

var RefundRequestValidator = schema(
	[]string{"booking_id", "policy_snapshot_json", "original_amount", "refund_amount", "status", "created_at"},
	bson.M{
		"booking_id":           str(1, 64),
		"policy_id":            str(0, 64),
		"policy_snapshot_json": bson.M{"bsonType": "string"},
		"original_amount":      decimal(),
		"refund_amount":        decimal(),
		"refund_percentage":    decimal(),
		"days_before_check_in": bson.M{"bsonType": integer},
		"is_eligible":          bson.M{"bsonType": "bool"},
		"status":               enum("requested", "evaluated", "processed", "rejected"),
		"processed_by":         str(0, 64),
		"processed_at":         date(),
		"rejection_reason":     str(0, 500),
		"created_at":           date(),
		"updated_at":           date(),
	},
)
