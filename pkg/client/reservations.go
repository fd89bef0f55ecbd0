package client

import (
	"fmt"
	"net/url"

	"staybook/pkg/model"
)

type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseUrl string) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *ReservationClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/reservations", body)
}

func (c *ReservationClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/reservations/" + url.PathEscape(id))
}

func (c *ReservationClient) ListByUser(userID string, limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/api/v1/users/%s/reservations?limit=%d&offset=%d", url.PathEscape(userID), limit, offset)
	return c.httpClient.GET(path)
}

func (c *ReservationClient) Extend(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/reservations/"+url.PathEscape(id)+"/extend", nil)
}

func (c *ReservationClient) AttachPayment(id string, payment *model.PaymentAttachment) (*Response, error) {
	return c.httpClient.POST("/api/v1/reservations/"+url.PathEscape(id)+"/payment", payment)
}

// Confirm sends the payment callback. idempotencyKey may be empty.
func (c *ReservationClient) Confirm(id string, confirmation *model.ReservationConfirmation, idempotencyKey string) (*Response, error) {
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/confirm"
	if idempotencyKey == "" {
		return c.httpClient.POST(path, confirmation)
	}
	return c.httpClient.POSTWithHeaders(path, confirmation, map[string]string{"Idempotency-Key": idempotencyKey})
}

func (c *ReservationClient) Cancel(id, reason string) (*Response, error) {
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/cancel"
	if reason == "" {
		return c.httpClient.POST(path, nil)
	}
	return c.httpClient.POST(path, &model.ReservationCancellation{Reason: reason})
}

func (c *ReservationClient) DecodeReservation(resp *Response) (*model.Reservation, error) {
	return DecodeData[model.Reservation](resp)
}

func (c *ReservationClient) DecodeReservations(resp *Response) ([]*model.Reservation, *Metadata, error) {
	return DecodePage[model.Reservation](resp)
}
