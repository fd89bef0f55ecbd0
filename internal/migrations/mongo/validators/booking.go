package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = schema(
	[]string{"room_id", "user_id", "check_in", "check_out", "quantity", "total_amount", "status", "lock_id", "version", "created_at"},
	bson.M{
		"room_id":      str(1, 64),
		"user_id":      str(1, 64),
		"check_in":     date(),
		"check_out":    date(),
		"quantity":     intRange(1, 100),
		"total_amount": decimal(),
		"status": enum(
			"pending",
			"awaiting_payment",
			"confirmed",
			"expired",
			"cancelled",
		),
		"lock_id":           str(1, 64),
		"expires_at":        date(),
		"extension_count":   intRange(0, 100),
		"payment_url":       str(0, 2048),
		"payment_reference": str(0, 128),
		"booking_id":        str(0, 64),
		"cancel_reason":     str(0, 500),
		"version":           intRange(0, 1<<62),
		"created_at":        date(),
		"updated_at":        date(),
	},
)

var BookingValidator = schema(
	[]string{
		"reservation_id",
		"room_id",
		"user_id",
		"check_in",
		"check_out",
		"quantity",
		"base_amount",
		"tax_amount",
		"service_fee",
		"total_amount",
		"status",
		"payment_status",
		"version",
		"created_at",
	},
	bson.M{
		"reservation_id":   str(1, 64),
		"room_id":          str(1, 64),
		"accommodation_id": str(0, 64),
		"user_id":          str(1, 64),
		"check_in":         date(),
		"check_out":        date(),
		"quantity":         intRange(1, 100),
		"base_amount":      decimal(),
		"tax_amount":       decimal(),
		"service_fee":      decimal(),
		"total_amount":     decimal(),
		"status": enum(
			"pending",
			"confirmed",
			"checked_in",
			"checked_out",
			"cancelled",
		),
		"payment_status": enum(
			"pending",
			"paid",
			"refund_pending",
			"refunded",
			"partially_refunded",
		),
		"payment_reference": str(0, 128),
		"cancel_reason":     str(0, 500),
		"version":           intRange(0, 1<<62),
		"created_at":        date(),
		"updated_at":        date(),
	},
)
