package client

import (
	"net/url"

	"staybook/pkg/model"
)

type RoomClient struct {
	httpClient *HttpClient
}

func NewRoomClient(baseUrl string) *RoomClient {
	return &RoomClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *RoomClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/rooms", body)
}

func (c *RoomClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/rooms/" + url.PathEscape(id))
}

func (c *RoomClient) Availability(id, checkIn, checkOut string) (*Response, error) {
	q := url.Values{}
	q.Set("check_in", checkIn)
	q.Set("check_out", checkOut)
	return c.httpClient.GET("/api/v1/rooms/" + url.PathEscape(id) + "/availability?" + q.Encode())
}

func (c *RoomClient) SetOverride(id, date string, body any) (*Response, error) {
	return c.httpClient.PUT("/api/v1/rooms/"+url.PathEscape(id)+"/overrides/"+url.PathEscape(date), body)
}

func (c *RoomClient) GetHold(token string) (*Response, error) {
	return c.httpClient.GET("/api/v1/holds/" + url.PathEscape(token))
}

func (c *RoomClient) DecodeRoom(resp *Response) (*model.Room, error) {
	return DecodeData[model.Room](resp)
}

func (c *RoomClient) DecodeAvailability(resp *Response) ([]model.NightAvailability, error) {
	nights, err := DecodeData[[]model.NightAvailability](resp)
	if err != nil {
		return nil, err
	}
	return *nights, nil
}
