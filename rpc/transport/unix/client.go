package unix

import (
	"context"
	"github.com/ValentinKolb/imuipc/rpc/transport"
	"github.com/ValentinKolb/imuipc/rpc/transport/base"
	"net"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct {
	dialer net.Dialer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	return c.dialer.DialContext(ctx, "unix", endpoint)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixConsumerTransport creates a new Unix socket consumer transport
func NewUnixConsumerTransport() transport.IConsumerTransport {
	return base.NewBaseConsumerTransport(&clientConnector{})
}
