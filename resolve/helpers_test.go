package resolve

import (
	"context"
	"net"
)

type dialToServer struct {
	addr string
}

func (d *dialToServer) dial(ctx context.Context, network, _ string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, network, d.addr)
}
