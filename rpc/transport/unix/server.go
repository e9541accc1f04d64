package unix

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/transport"
	"github.com/ValentinKolb/imuipc/rpc/transport/base"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(config common.PublisherConfig) (net.Listener, error) {
	socketPath := config.Endpoint

	// Create the parent directory if it does not exist
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Remove a stale socket left behind by a previous publisher
	if err := removeSocket(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	// Create Unix socket listener
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}

	if config.SocketMode != 0 {
		if err := os.Chmod(socketPath, config.SocketMode); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("failed to set socket mode %#o: %w", config.SocketMode, err)
		}
	}

	return listener, nil
}

func (c *serverConnector) Cleanup(config common.PublisherConfig) error {
	return removeSocket(config.Endpoint)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// removeSocket removes the socket file at path. A missing file is not an error,
// anything that is not a socket is left alone
func removeSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixPublisherTransport creates a new Unix socket publisher transport
func NewUnixPublisherTransport() transport.IPublisherTransport {
	return base.NewBasePublisherTransport(&serverConnector{})
}
