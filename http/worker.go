package http

import (
	"context"
	"net"
)

// connJob is the unit of work queued for every accepted connection.
type connJob struct {
	server *Server
	conn   net.Conn
}

func (job *connJob) Run(ctx context.Context) {
	job.server.ServeConn(ctx, job.conn)
}

func (s *Server) submit(conn net.Conn) error {
	return s.pool.Submit(&connJob{server: s, conn: conn})
}
