package handler

import (
	"encoding/json"
	"net/http"
)

// RoomCounter は稼働中のルーム数を返します。
type RoomCounter interface {
	Rooms() int
}

type healthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

func NewHealthHandler(rooms RoomCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Rooms: rooms.Rooms()})
	}
}
