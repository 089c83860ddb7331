package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const serviceName = "SLCache"

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Purge runs an eviction pass in the daemon.
func (c *Client) Purge() (*PurgeResponse, error) {
	var resp PurgeResponse
	if err := c.call("Purge", PurgeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clear empties the daemon's cache.
func (c *Client) Clear() (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.call("Clear", ClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Seed re-copies missing static assets.
func (c *Client) Seed() (*SeedResponse, error) {
	var resp SeedResponse
	if err := c.call("Seed", SeedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Usage returns disk consumption.
func (c *Client) Usage() (*UsageResponse, error) {
	var resp UsageResponse
	if err := c.call("Usage", UsageRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit journaled passes.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Protected lists keys exempt from eviction.
func (c *Client) Protected() (*ProtectedResponse, error) {
	var resp ProtectedResponse
	if err := c.call("Protected", ProtectedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
