package mock

import "net/http/httptest"

type HTTPTestAuthServer struct {
	*AuthService
	Server *httptest.Server
	URL    string
}

func NewHTTPTestAuthServer(opts ...Option) *HTTPTestAuthServer {
	service := NewAuthService(opts...)
	server := &HTTPTestAuthServer{AuthService: service}
	server.Server = httptest.NewServer(service.Handler())
	server.URL = server.Server.URL
	return server
}

func (s *HTTPTestAuthServer) Close() {
	if s.Server != nil {
		s.Server.Close()
	}
	s.Server = nil
}
