package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	API   *http.Client // Supabase REST
	Media *http.Client // thumbnails, extension downloads
}

func NewClients() *Clients {
	return &Clients{
		API:   &http.Client{Timeout: 30 * time.Second},
		Media: &http.Client{Timeout: 60 * time.Second},
	}
}
