package client

import (
	"fmt"
	"net/url"

	"staybook/pkg/model"
)

// BookingClient covers the booking lifecycle and the refund endpoints
// served next to it.
type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *BookingClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/bookings/" + url.PathEscape(id))
}

func (c *BookingClient) ListByUser(userID string, limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/api/v1/users/%s/bookings?limit=%d&offset=%d", url.PathEscape(userID), limit, offset)
	return c.httpClient.GET(path)
}

func (c *BookingClient) CheckIn(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/"+url.PathEscape(id)+"/check-in", nil)
}

func (c *BookingClient) CheckOut(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/"+url.PathEscape(id)+"/check-out", nil)
}

func (c *BookingClient) Cancel(id string, body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/"+url.PathEscape(id)+"/cancel", body)
}

func (c *BookingClient) CreatePolicy(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/refund-policies", body)
}

func (c *BookingClient) ActivePolicy(accommodationID string) (*Response, error) {
	return c.httpClient.GET("/api/v1/accommodations/" + url.PathEscape(accommodationID) + "/refund-policy")
}

func (c *BookingClient) RequestRefund(bookingID string) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/"+url.PathEscape(bookingID)+"/refund", nil)
}

func (c *BookingClient) ProcessRefund(refundID string, decision *model.RefundDecision) (*Response, error) {
	return c.httpClient.POST("/api/v1/refunds/"+url.PathEscape(refundID)+"/process", decision)
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	return DecodeData[model.Booking](resp)
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, *Metadata, error) {
	return DecodePage[model.Booking](resp)
}

func (c *BookingClient) DecodeRefund(resp *Response) (*model.RefundRequest, error) {
	return DecodeData[model.RefundRequest](resp)
}

func (c *BookingClient) DecodePolicy(resp *Response) (*model.RefundPolicy, error) {
	return DecodeData[model.RefundPolicy](resp)
}
