// Package manageclient talks to the broker management API.
package manageclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// QueueInfo mirrors the management payload for one queue destination.
type QueueInfo struct {
	Destination string `json:"destination"`
	PendingSize int    `json:"pending_size"`
	Subscribers int    `json:"subscribers"`
	InFlight    int    `json:"in_flight"`
}

// TopicInfo mirrors the management payload for one topic destination.
type TopicInfo struct {
	Destination string `json:"destination"`
	Subscribers int    `json:"subscribers"`
}

type ManageClient struct {
	rr   *resty.Client
	addr string
}

func NewManageClient(manageAddr string) (*ManageClient, error) {
	c := &ManageClient{
		rr:   resty.New(),
		addr: fmt.Sprint("http://", manageAddr),
	}
	return c, nil
}

func (c *ManageClient) Health() error {
	resp, err := c.rr.R().Get(c.addr + "/health")
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return errors.New("broker health check failed")
	}
	return nil
}

func (c *ManageClient) Queues() ([]QueueInfo, error) {
	resp, err := c.rr.R().Get(c.addr + "/queues")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, errors.New("list queues failed")
	}
	var infos []QueueInfo
	if err := json.Unmarshal(resp.Body(), &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *ManageClient) Topics() ([]TopicInfo, error) {
	resp, err := c.rr.R().Get(c.addr + "/topics")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, errors.New("list topics failed")
	}
	var infos []TopicInfo
	if err := json.Unmarshal(resp.Body(), &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *ManageClient) Connections() (int, error) {
	resp, err := c.rr.R().Get(c.addr + "/connections")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() != 200 {
		return 0, errors.New("query connections failed")
	}
	var payload struct {
		Connections int `json:"connections"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, err
	}
	return payload.Connections, nil
}

// Metrics fetches the raw prometheus exposition text.
func (c *ManageClient) Metrics() (string, error) {
	resp, err := c.rr.R().Get(c.addr + "/metrics")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", errors.New("fetch metrics failed")
	}
	return string(resp.Body()), nil
}
