package server

import (
	"net/http"

	"penbrawl/server/domain"
	"penbrawl/server/handler"
)

func Route(pubsub domain.PubSub, roomManager *domain.SimpleRoomManager, cfg domain.EndpointConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", handler.NewAcceptHandler(pubsub, roomManager, cfg))
	mux.Handle("GET /healthz", handler.NewHealthHandler(roomManager))
	return mux
}
